// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEpoch   = errors.New("unknown epoch")
	ErrUnknownVersion = errors.New("unknown clarity version")
)

// Epoch is a named era of the chain. Epochs are ordered; later epochs compare
// greater.
type Epoch uint8

const (
	Epoch20 Epoch = iota + 1
	Epoch205
	Epoch21
	Epoch22
	Epoch23
	Epoch24
	Epoch25
	Epoch30
	Epoch31
	Epoch32
	Epoch33

	LatestEpoch = Epoch33
)

var epochNames = map[Epoch]string{
	Epoch20:  "2.0",
	Epoch205: "2.05",
	Epoch21:  "2.1",
	Epoch22:  "2.2",
	Epoch23:  "2.3",
	Epoch24:  "2.4",
	Epoch25:  "2.5",
	Epoch30:  "3.0",
	Epoch31:  "3.1",
	Epoch32:  "3.2",
	Epoch33:  "3.3",
}

// Epochs lists every known epoch in order.
func Epochs() []Epoch {
	epochs := make([]Epoch, 0, len(epochNames))
	for e := Epoch20; e <= LatestEpoch; e++ {
		epochs = append(epochs, e)
	}
	return epochs
}

func (e Epoch) String() string {
	if name, ok := epochNames[e]; ok {
		return name
	}
	return fmt.Sprintf("epoch(%d)", uint8(e))
}

// ParseEpoch accepts "2.4", "Epoch24", "epoch-2.4" and similar spellings.
func ParseEpoch(s string) (Epoch, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "epoch")
	norm = strings.TrimPrefix(norm, "-")
	norm = strings.TrimPrefix(norm, "_")
	for e, name := range epochNames {
		if norm == name || norm == strings.ReplaceAll(name, ".", "") || norm == strings.ReplaceAll(name, ".", "_") {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEpoch, s)
}

// DefaultVersion is the Clarity version contracts get when deployed in e
// without an explicit version.
func (e Epoch) DefaultVersion() Version {
	switch {
	case e < Epoch21:
		return Clarity1
	case e < Epoch30:
		return Clarity2
	case e < Epoch33:
		return Clarity3
	default:
		return Clarity4
	}
}

// MaxVersion is the newest Clarity version deployable in e.
func (e Epoch) MaxVersion() Version {
	return e.DefaultVersion()
}

// SupportsVersion reports whether contracts of version v can be deployed in e.
func (e Epoch) SupportsVersion(v Version) bool {
	return v >= Clarity1 && v <= e.MaxVersion()
}

// DecoupledBlocks reports whether stacks blocks and burn blocks advance
// independently in e.
func (e Epoch) DecoupledBlocks() bool {
	return e >= Epoch30
}

func (e Epoch) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Epoch) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseEpoch(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Version is a Clarity language version.
type Version uint8

const (
	Clarity1 Version = iota + 1
	Clarity2
	Clarity3
	Clarity4

	LatestVersion = Clarity4
)

func (v Version) String() string {
	if v >= Clarity1 && v <= LatestVersion {
		return fmt.Sprintf("Clarity%d", uint8(v))
	}
	return fmt.Sprintf("clarity(%d)", uint8(v))
}

// ParseVersion accepts "1", "clarity2", "Clarity3".
func ParseVersion(s string) (Version, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "clarity")
	norm = strings.TrimPrefix(norm, "_")
	switch norm {
	case "1":
		return Clarity1, nil
	case "2":
		return Clarity2, nil
	case "3":
		return Clarity3, nil
	case "4":
		return Clarity4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Version) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n uint8
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		s = fmt.Sprint(n)
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
