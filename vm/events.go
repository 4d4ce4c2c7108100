// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/utils/formatting"

	"github.com/ava-labs/simnet/clarity"
)

// Event is something a transaction emitted. The set of events is closed.
type Event interface {
	// Name is the JSON tag of the event, e.g. "stx_transfer_event".
	Name() string
	String() string
	json.Marshaler
	isEvent()
}

type eventJSON struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func marshalEvent(name string, data interface{}) ([]byte, error) {
	return json.Marshal(eventJSON{Event: name, Data: data})
}

func rawValue(v clarity.Value) string {
	s, err := clarity.SerializeHex(v)
	if err != nil {
		return ""
	}
	return s
}

type PrintEvent struct {
	Contract clarity.Principal
	Value    clarity.Value
}

type STXTransferEvent struct {
	Sender    clarity.Principal
	Recipient clarity.Principal
	Amount    clarity.UInt
	Memo      []byte
}

type STXMintEvent struct {
	Recipient clarity.Principal
	Amount    clarity.UInt
}

type STXBurnEvent struct {
	Sender clarity.Principal
	Amount clarity.UInt
}

type STXLockEvent struct {
	Locked       clarity.UInt
	UnlockHeight uint32
	Locker       clarity.Principal
}

type FTTransferEvent struct {
	Asset     string
	Sender    clarity.Principal
	Recipient clarity.Principal
	Amount    clarity.UInt
}

type FTMintEvent struct {
	Asset     string
	Recipient clarity.Principal
	Amount    clarity.UInt
}

type FTBurnEvent struct {
	Asset  string
	Sender clarity.Principal
	Amount clarity.UInt
}

type NFTTransferEvent struct {
	Asset     string
	Sender    clarity.Principal
	Recipient clarity.Principal
	Value     clarity.Value
}

type NFTMintEvent struct {
	Asset     string
	Recipient clarity.Principal
	Value     clarity.Value
}

type NFTBurnEvent struct {
	Asset  string
	Sender clarity.Principal
	Value  clarity.Value
}

type DataVarSetEvent struct {
	Contract clarity.Principal
	Var      string
	Value    clarity.Value
}

type MapInsertEvent struct {
	Contract clarity.Principal
	Map      string
	Key      clarity.Value
	Value    clarity.Value
}

type MapUpdateEvent struct {
	Contract clarity.Principal
	Map      string
	Key      clarity.Value
	Value    clarity.Value
}

type MapDeleteEvent struct {
	Contract clarity.Principal
	Map      string
	Key      clarity.Value
}

// ContractCallEvent records a contract-call? between contracts.
type ContractCallEvent struct {
	Caller   clarity.Principal
	Contract clarity.Principal
	Function string
	Args     []clarity.Value
}

func (*PrintEvent) isEvent()        {}
func (*STXTransferEvent) isEvent()  {}
func (*STXMintEvent) isEvent()      {}
func (*STXBurnEvent) isEvent()      {}
func (*STXLockEvent) isEvent()      {}
func (*FTTransferEvent) isEvent()   {}
func (*FTMintEvent) isEvent()       {}
func (*FTBurnEvent) isEvent()       {}
func (*NFTTransferEvent) isEvent()  {}
func (*NFTMintEvent) isEvent()      {}
func (*NFTBurnEvent) isEvent()      {}
func (*DataVarSetEvent) isEvent()   {}
func (*MapInsertEvent) isEvent()    {}
func (*MapUpdateEvent) isEvent()    {}
func (*MapDeleteEvent) isEvent()    {}
func (*ContractCallEvent) isEvent() {}

func (*PrintEvent) Name() string        { return "print_event" }
func (*STXTransferEvent) Name() string  { return "stx_transfer_event" }
func (*STXMintEvent) Name() string      { return "stx_mint_event" }
func (*STXBurnEvent) Name() string      { return "stx_burn_event" }
func (*STXLockEvent) Name() string      { return "stx_lock_event" }
func (*FTTransferEvent) Name() string   { return "ft_transfer_event" }
func (*FTMintEvent) Name() string       { return "ft_mint_event" }
func (*FTBurnEvent) Name() string       { return "ft_burn_event" }
func (*NFTTransferEvent) Name() string  { return "nft_transfer_event" }
func (*NFTMintEvent) Name() string      { return "nft_mint_event" }
func (*NFTBurnEvent) Name() string      { return "nft_burn_event" }
func (*DataVarSetEvent) Name() string   { return "data_var_set_event" }
func (*MapInsertEvent) Name() string    { return "map_insert_event" }
func (*MapUpdateEvent) Name() string    { return "map_update_event" }
func (*MapDeleteEvent) Name() string    { return "map_delete_event" }
func (*ContractCallEvent) Name() string { return "contract_call_event" }

func amount(u clarity.UInt) string { return u.Big().Dec() }

func (e *PrintEvent) String() string {
	return fmt.Sprintf("print %s from %s", e.Value, e.Contract.ID())
}

func (e *STXTransferEvent) String() string {
	return fmt.Sprintf("transfer %s µSTX from %s to %s", amount(e.Amount), e.Sender.ID(), e.Recipient.ID())
}

func (e *STXMintEvent) String() string {
	return fmt.Sprintf("mint %s µSTX to %s", amount(e.Amount), e.Recipient.ID())
}

func (e *STXBurnEvent) String() string {
	return fmt.Sprintf("burn %s µSTX from %s", amount(e.Amount), e.Sender.ID())
}

func (e *STXLockEvent) String() string {
	return fmt.Sprintf("lock %s µSTX of %s until burn height %d", amount(e.Locked), e.Locker.ID(), e.UnlockHeight)
}

func (e *FTTransferEvent) String() string {
	return fmt.Sprintf("transfer %s %s from %s to %s", amount(e.Amount), e.Asset, e.Sender.ID(), e.Recipient.ID())
}

func (e *FTMintEvent) String() string {
	return fmt.Sprintf("mint %s %s to %s", amount(e.Amount), e.Asset, e.Recipient.ID())
}

func (e *FTBurnEvent) String() string {
	return fmt.Sprintf("burn %s %s from %s", amount(e.Amount), e.Asset, e.Sender.ID())
}

func (e *NFTTransferEvent) String() string {
	return fmt.Sprintf("transfer %s %s from %s to %s", e.Asset, e.Value, e.Sender.ID(), e.Recipient.ID())
}

func (e *NFTMintEvent) String() string {
	return fmt.Sprintf("mint %s %s to %s", e.Asset, e.Value, e.Recipient.ID())
}

func (e *NFTBurnEvent) String() string {
	return fmt.Sprintf("burn %s %s from %s", e.Asset, e.Value, e.Sender.ID())
}

func (e *DataVarSetEvent) String() string {
	return fmt.Sprintf("set %s.%s to %s", e.Contract.ID(), e.Var, e.Value)
}

func (e *MapInsertEvent) String() string {
	return fmt.Sprintf("insert %s => %s into %s.%s", e.Key, e.Value, e.Contract.ID(), e.Map)
}

func (e *MapUpdateEvent) String() string {
	return fmt.Sprintf("update %s => %s in %s.%s", e.Key, e.Value, e.Contract.ID(), e.Map)
}

func (e *MapDeleteEvent) String() string {
	return fmt.Sprintf("delete %s from %s.%s", e.Key, e.Contract.ID(), e.Map)
}

func (e *ContractCallEvent) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s called (contract-call? %s %s %s)", e.Caller.ID(), e.Contract.String(), e.Function, strings.Join(args, " "))
}

func (e *PrintEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"contract_identifier": e.Contract.ID(),
		"topic":               "print",
		"value":               e.Value.String(),
		"raw_value":           rawValue(e.Value),
	})
}

func (e *STXTransferEvent) MarshalJSON() ([]byte, error) {
	memo, err := formatting.Encode(formatting.HexNC, e.Memo)
	if err != nil {
		return nil, err
	}
	if len(e.Memo) == 0 {
		memo = ""
	}
	return marshalEvent(e.Name(), map[string]string{
		"sender":    e.Sender.ID(),
		"recipient": e.Recipient.ID(),
		"amount":    amount(e.Amount),
		"memo":      memo,
	})
}

func (e *STXMintEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"recipient": e.Recipient.ID(),
		"amount":    amount(e.Amount),
	})
}

func (e *STXBurnEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"sender": e.Sender.ID(),
		"amount": amount(e.Amount),
	})
}

func (e *STXLockEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]interface{}{
		"locked_amount":  amount(e.Locked),
		"unlock_height":  e.UnlockHeight,
		"locked_address": e.Locker.ID(),
	})
}

func (e *FTTransferEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"asset_identifier": e.Asset,
		"sender":           e.Sender.ID(),
		"recipient":        e.Recipient.ID(),
		"amount":           amount(e.Amount),
	})
}

func (e *FTMintEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"asset_identifier": e.Asset,
		"recipient":        e.Recipient.ID(),
		"amount":           amount(e.Amount),
	})
}

func (e *FTBurnEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"asset_identifier": e.Asset,
		"sender":           e.Sender.ID(),
		"amount":           amount(e.Amount),
	})
}

func (e *NFTTransferEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"asset_identifier": e.Asset,
		"sender":           e.Sender.ID(),
		"recipient":        e.Recipient.ID(),
		"value":            e.Value.String(),
		"raw_value":        rawValue(e.Value),
	})
}

func (e *NFTMintEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"asset_identifier": e.Asset,
		"recipient":        e.Recipient.ID(),
		"value":            e.Value.String(),
		"raw_value":        rawValue(e.Value),
	})
}

func (e *NFTBurnEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"asset_identifier": e.Asset,
		"sender":           e.Sender.ID(),
		"value":            e.Value.String(),
		"raw_value":        rawValue(e.Value),
	})
}

func (e *DataVarSetEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"contract_identifier": e.Contract.ID(),
		"var":                 e.Var,
		"value":               e.Value.String(),
	})
}

func (e *MapInsertEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"contract_identifier": e.Contract.ID(),
		"map":                 e.Map,
		"key":                 e.Key.String(),
		"value":               e.Value.String(),
	})
}

func (e *MapUpdateEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"contract_identifier": e.Contract.ID(),
		"map":                 e.Map,
		"key":                 e.Key.String(),
		"value":               e.Value.String(),
	})
}

func (e *MapDeleteEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(e.Name(), map[string]string{
		"contract_identifier": e.Contract.ID(),
		"map":                 e.Map,
		"key":                 e.Key.String(),
	})
}

func (e *ContractCallEvent) MarshalJSON() ([]byte, error) {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return marshalEvent(e.Name(), map[string]interface{}{
		"caller":              e.Caller.ID(),
		"contract_identifier": e.Contract.ID(),
		"function_name":       e.Function,
		"function_args":       args,
	})
}
