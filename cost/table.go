// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cost

// Linear is a runtime cost function a*n + b.
type Linear struct {
	A uint64
	B uint64
}

func (l Linear) Eval(n uint64) uint64 { return l.A*n + l.B }

var defaultCost = Linear{A: 0, B: 100}

// Runtime costs per builtin, after the costs-3 boot contract. n is the number
// of arguments for variadic functions, the sequence length for sequence
// functions and the byte length for hashing and serialization.
var defaultTable = map[string]Linear{
	"+":     {A: 11, B: 125},
	"-":     {A: 11, B: 125},
	"*":     {A: 12, B: 125},
	"/":     {A: 12, B: 125},
	"mod":   {B: 141},
	"pow":   {B: 143},
	"sqrti": {B: 142},
	"log2":  {B: 133},
	"<":     {A: 7, B: 128},
	">":     {A: 7, B: 128},
	"<=":    {A: 7, B: 128},
	">=":    {A: 7, B: 128},
	"xor":   {B: 139},
	"not":   {B: 138},
	"and":   {A: 15, B: 129},
	"or":    {A: 15, B: 129},
	"is-eq": {A: 7, B: 151},

	"bit-and":         {A: 15, B: 129},
	"bit-or":          {A: 15, B: 129},
	"bit-xor":         {A: 15, B: 129},
	"bit-not":         {B: 147},
	"bit-shift-left":  {B: 167},
	"bit-shift-right": {B: 167},

	"if":               {B: 168},
	"let":              {A: 117, B: 178},
	"begin":            {B: 151},
	"match":            {B: 264},
	"asserts!":         {B: 128},
	"try!":             {B: 281},
	"unwrap!":          {B: 284},
	"unwrap-err!":      {B: 264},
	"unwrap-panic":     {B: 274},
	"unwrap-err-panic": {B: 302},
	"default-to":       {B: 268},

	"some":  {B: 199},
	"ok":    {B: 199},
	"err":   {B: 199},
	"list":  {A: 14, B: 164},
	"tuple": {A: 1, B: 1125},
	"get":   {A: 1, B: 64},
	"merge": {A: 4, B: 408},

	"is-some":     {B: 214},
	"is-none":     {B: 214},
	"is-ok":       {B: 258},
	"is-err":      {B: 245},
	"is-standard": {B: 127},

	"len":         {B: 429},
	"map":         {A: 1198, B: 3067},
	"filter":      {B: 407},
	"fold":        {B: 433},
	"append":      {A: 73, B: 285},
	"concat":      {A: 37, B: 220},
	"as-max-len?": {B: 475},
	"element-at":  {B: 498},
	"element-at?": {B: 498},
	"index-of":    {A: 1, B: 211},
	"index-of?":   {A: 1, B: 211},
	"slice?":      {B: 448},
	"replace-at?": {A: 1, B: 561},

	"to-int":               {B: 135},
	"to-uint":              {B: 135},
	"int-to-ascii":         {B: 147},
	"int-to-utf8":          {B: 181},
	"string-to-int?":       {B: 168},
	"string-to-uint?":      {B: 168},
	"buff-to-int-be":       {B: 141},
	"buff-to-int-le":       {B: 141},
	"buff-to-uint-be":      {B: 141},
	"buff-to-uint-le":      {B: 141},
	"to-consensus-buff?":   {A: 1, B: 233},
	"from-consensus-buff?": {A: 2, B: 185},
	"to-ascii?":            {A: 1, B: 150},

	"sha256":             {A: 1, B: 100},
	"sha512":             {A: 1, B: 176},
	"sha512/256":         {A: 1, B: 56},
	"keccak256":          {A: 1, B: 127},
	"hash160":            {A: 1, B: 188},
	"secp256k1-recover?": {B: 8655},
	"secp256k1-verify":   {B: 8349},

	"var-get":    {A: 1, B: 470},
	"var-set":    {A: 1, B: 550},
	"map-get?":   {A: 1, B: 1025},
	"map-set":    {A: 4, B: 1899},
	"map-insert": {A: 4, B: 1899},
	"map-delete": {A: 1, B: 1899},

	"stx-get-balance":    {B: 4294},
	"stx-account":        {B: 4654},
	"stx-transfer?":      {B: 4640},
	"stx-transfer-memo?": {B: 4709},
	"stx-burn?":          {B: 4640},
	"ft-get-balance":     {B: 479},
	"ft-get-supply":      {B: 420},
	"ft-mint?":           {B: 1479},
	"ft-burn?":           {B: 549},
	"ft-transfer?":       {B: 549},
	"nft-get-owner?":     {A: 1, B: 575},
	"nft-mint?":          {A: 9, B: 575},
	"nft-burn?":          {A: 9, B: 572},
	"nft-transfer?":      {A: 9, B: 572},

	"get-block-info?":        {B: 6321},
	"get-burn-block-info?":   {B: 96479},
	"get-stacks-block-info?": {B: 6321},
	"get-tenure-info?":       {B: 6321},
	"at-block":               {B: 1327},

	"principal-construct?": {B: 398},
	"principal-destruct?":  {B: 314},
	"principal-of?":        {B: 984},
	"contract-of":          {B: 13400},
	"contract-hash?":       {B: 13400},

	"as-contract":    {B: 138},
	"contract-call?": {B: 134},
	"print":          {A: 15, B: 1458},

	"user-function": {A: 26, B: 5},
	"lookup":        {A: 2, B: 14},
}
