// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/coverage"
)

// Access is the visibility class of a contract function.
type Access uint8

const (
	Private Access = iota
	Public
	ReadOnly
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case ReadOnly:
		return "read_only"
	default:
		return "private"
	}
}

type Param struct {
	Name string
	Type clarity.TypeSignature
}

// Function is a define-public, define-private or define-read-only.
type Function struct {
	Name   string
	Access Access
	Params []Param
	Body   []*ast.Expr
	Span   ast.Span
	Output clarity.TypeSignature
}

type DataVar struct {
	Name string
	Type clarity.TypeSignature
	Init *ast.Expr
}

type Map struct {
	Name  string
	Key   clarity.TypeSignature
	Value clarity.TypeSignature
}

type FungibleToken struct {
	Name   string
	Supply *ast.Expr
}

type NonFungibleToken struct {
	Name string
	Type clarity.TypeSignature
}

type Constant struct {
	Name string
	Expr *ast.Expr
}

// TraitFunction is one signature of a trait.
type TraitFunction struct {
	Name   string
	Params []clarity.TypeSignature
	Output clarity.TypeSignature
}

type Trait struct {
	Name      string
	Functions []TraitFunction
}

// Contract is an analyzed contract. Its version and epoch are fixed when it
// is deployed.
type Contract struct {
	ID      clarity.Principal
	Source  string
	Exprs   []*ast.Expr
	Epoch   clarity.Epoch
	Version clarity.Version
	Height  uint32
	Remote  bool

	Functions  map[string]*Function
	Vars       map[string]*DataVar
	Maps       map[string]*Map
	FTs        map[string]*FungibleToken
	NFTs       map[string]*NonFungibleToken
	Constants  map[string]*Constant
	Traits     map[string]*Trait
	UsedTraits map[string]clarity.TraitIdentifier
	ImplTraits []clarity.TraitIdentifier

	// definition order, for interfaces
	order []string

	constValues map[string]clarity.Value

	lines    []uint32
	branches []coverage.Branch
	fnSpans  []coverage.Function
}

func newContract(id clarity.Principal, source string, epoch clarity.Epoch, version clarity.Version) *Contract {
	return &Contract{
		ID:          id,
		Source:      source,
		Epoch:       epoch,
		Version:     version,
		Functions:   make(map[string]*Function),
		Vars:        make(map[string]*DataVar),
		Maps:        make(map[string]*Map),
		FTs:         make(map[string]*FungibleToken),
		NFTs:        make(map[string]*NonFungibleToken),
		Constants:   make(map[string]*Constant),
		Traits:      make(map[string]*Trait),
		UsedTraits:  make(map[string]clarity.TraitIdentifier),
		constValues: make(map[string]clarity.Value),
	}
}

// defined reports whether name is already taken by a top-level definition.
func (c *Contract) defined(name string) bool {
	if _, ok := c.Functions[name]; ok {
		return true
	}
	if _, ok := c.Vars[name]; ok {
		return true
	}
	if _, ok := c.Maps[name]; ok {
		return true
	}
	if _, ok := c.FTs[name]; ok {
		return true
	}
	if _, ok := c.NFTs[name]; ok {
		return true
	}
	if _, ok := c.Constants[name]; ok {
		return true
	}
	_, ok := c.Traits[name]
	return ok
}

// ConstantValue returns the value of a define-constant once the contract has
// been deployed or loaded.
func (c *Contract) ConstantValue(name string) (clarity.Value, bool) {
	v, ok := c.constValues[name]
	return v, ok
}

// ContractInterface is the public description of a contract, in the layout
// Clarinet emits.
type ContractInterface struct {
	Functions         []FunctionInterface `json:"functions"`
	Variables         []VariableInterface `json:"variables"`
	Maps              []MapInterface      `json:"maps"`
	FungibleTokens    []TokenInterface    `json:"fungible_tokens"`
	NonFungibleTokens []NFTInterface      `json:"non_fungible_tokens"`
	Epoch             clarity.Epoch       `json:"epoch"`
	ClarityVersion    clarity.Version     `json:"clarity_version"`
}

type ArgInterface struct {
	Name string                `json:"name"`
	Type clarity.TypeSignature `json:"type"`
}

type FunctionInterface struct {
	Name    string         `json:"name"`
	Access  string         `json:"access"`
	Args    []ArgInterface `json:"args"`
	Outputs struct {
		Type clarity.TypeSignature `json:"type"`
	} `json:"outputs"`
}

type VariableInterface struct {
	Name   string                `json:"name"`
	Type   clarity.TypeSignature `json:"type"`
	Access string                `json:"access"`
}

type MapInterface struct {
	Name  string                `json:"name"`
	Key   clarity.TypeSignature `json:"key"`
	Value clarity.TypeSignature `json:"value"`
}

type TokenInterface struct {
	Name string `json:"name"`
}

type NFTInterface struct {
	Name string                `json:"name"`
	Type clarity.TypeSignature `json:"type"`
}

// Interface describes the functions, storage and tokens of c in definition
// order.
func (c *Contract) Interface() *ContractInterface {
	iface := &ContractInterface{
		Functions:         []FunctionInterface{},
		Variables:         []VariableInterface{},
		Maps:              []MapInterface{},
		FungibleTokens:    []TokenInterface{},
		NonFungibleTokens: []NFTInterface{},
		Epoch:             c.Epoch,
		ClarityVersion:    c.Version,
	}
	for _, name := range c.order {
		if fn, ok := c.Functions[name]; ok {
			fi := FunctionInterface{Name: fn.Name, Access: fn.Access.String(), Args: []ArgInterface{}}
			for _, p := range fn.Params {
				fi.Args = append(fi.Args, ArgInterface{Name: p.Name, Type: p.Type})
			}
			fi.Outputs.Type = fn.Output
			iface.Functions = append(iface.Functions, fi)
			continue
		}
		if v, ok := c.Vars[name]; ok {
			iface.Variables = append(iface.Variables, VariableInterface{Name: name, Type: v.Type, Access: "variable"})
			continue
		}
		if k, ok := c.Constants[name]; ok {
			t := clarity.NoType
			if v, ok := c.constValues[name]; ok {
				t = v.Type()
			}
			iface.Variables = append(iface.Variables, VariableInterface{Name: k.Name, Type: t, Access: "constant"})
			continue
		}
		if m, ok := c.Maps[name]; ok {
			iface.Maps = append(iface.Maps, MapInterface{Name: name, Key: m.Key, Value: m.Value})
			continue
		}
		if _, ok := c.FTs[name]; ok {
			iface.FungibleTokens = append(iface.FungibleTokens, TokenInterface{Name: name})
			continue
		}
		if nft, ok := c.NFTs[name]; ok {
			iface.NonFungibleTokens = append(iface.NonFungibleTokens, NFTInterface{Name: name, Type: nft.Type})
		}
	}
	return iface
}
