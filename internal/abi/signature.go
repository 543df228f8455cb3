// Package abi parses event signatures and decodes logs against them.
package abi

import (
	"fmt"
	"regexp"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	eventNameRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9_]*$`)
	paramNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	bytesNRe    = regexp.MustCompile(`^bytes([1-9]|[12][0-9]|3[0-2])$`)
	intNRe      = regexp.MustCompile(`^u?int(8|16|24|32|40|48|56|64|72|80|88|96|104|112|120|128|136|144|152|160|168|176|184|192|200|208|216|224|232|240|248|256)?$`) //nolint:lll
	fixedArrRe  = regexp.MustCompile(`\[\d+\]$`)
)

// EventParam is one parameter of an event signature.
type EventParam struct {
	Name    string
	Type    string
	Indexed bool
}

// EventSignature is a parsed event signature.
type EventSignature struct {
	Raw    string
	Name   string
	Params []EventParam
}

// ParseEventSignature parses an event signature.
// Supported formats:
//   - "Transfer(address,address,uint256)"
//   - "Transfer(address indexed from, address indexed to, uint256 value)"
//   - "Transfer(address from, address to, uint256 value)"
func ParseEventSignature(sig string) (*EventSignature, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return nil, fmt.Errorf("empty signature")
	}

	openParen := strings.Index(sig, "(")
	if openParen == -1 {
		return nil, fmt.Errorf("invalid signature %q: missing opening parenthesis", sig)
	}

	name := strings.TrimSpace(sig[:openParen])
	if !eventNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid event name '%s': must start "+
			"with uppercase letter and contain only alphanumeric characters", name)
	}

	closeParen := strings.LastIndex(sig, ")")
	if closeParen <= openParen || strings.TrimSpace(sig[closeParen+1:]) != "" {
		return nil, fmt.Errorf("invalid signature %q: malformed parentheses", sig)
	}

	params, err := parseParameters(sig[openParen+1 : closeParen])
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", sig, err)
	}

	return &EventSignature{Raw: sig, Name: name, Params: params}, nil
}

// Topic returns the first topic of logs emitted for sig: keccak256 of its canonical form.
func Topic(sig string) (common.Hash, error) {
	parsed, err := ParseEventSignature(sig)
	if err != nil {
		return common.Hash{}, err
	}

	return parsed.Topic(), nil
}

// CanonicalSignature returns the signature without names, with integer aliases expanded.
// Example: "Transfer(address,address,uint256)"
func (e *EventSignature) CanonicalSignature() string {
	types := make([]string, len(e.Params))
	for i, param := range e.Params {
		types[i] = canonicalType(param.Type)
	}

	return e.Name + "(" + strings.Join(types, ",") + ")"
}

// Topic returns keccak256 of the canonical signature.
func (e *EventSignature) Topic() common.Hash {
	return crypto.Keccak256Hash([]byte(e.CanonicalSignature()))
}

// IndexedParams returns only the indexed parameters.
func (e *EventSignature) IndexedParams() []EventParam {
	var indexed []EventParam
	for _, param := range e.Params {
		if param.Indexed {
			indexed = append(indexed, param)
		}
	}
	return indexed
}

// ABIEvent builds the go-ethereum event description so logs can be decoded without an ABI file.
func (e *EventSignature) ABIEvent() (gethabi.Event, error) {
	inputs := make(gethabi.Arguments, 0, len(e.Params))
	for _, param := range e.Params {
		typ, err := gethabi.NewType(canonicalType(param.Type), "", nil)
		if err != nil {
			return gethabi.Event{}, fmt.Errorf("parse type %s: %w", param.Type, err)
		}
		inputs = append(inputs, gethabi.Argument{Name: param.Name, Type: typ, Indexed: param.Indexed})
	}

	return gethabi.NewEvent(e.Name, e.Name, false, inputs), nil
}

func parseParameters(paramsStr string) ([]EventParam, error) {
	paramsStr = strings.TrimSpace(paramsStr)
	if paramsStr == "" {
		return []EventParam{}, nil
	}

	parts := splitParameters(paramsStr)
	params := make([]EventParam, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for i, part := range parts {
		param, err := parseParameter(strings.TrimSpace(part), i)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter '%s': %w", part, err)
		}

		if seen[param.Name] {
			return nil, fmt.Errorf("duplicate parameter name: %s", param.Name)
		}
		seen[param.Name] = true

		params = append(params, param)
	}

	return params, nil
}

// splitParameters splits on top level commas only.
func splitParameters(paramsStr string) []string {
	var (
		params  []string
		current strings.Builder
		depth   int
	)

	for _, ch := range paramsStr {
		switch {
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			params = append(params, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}

	return append(params, current.String())
}

// parseParameter accepts "type", "type name", "type indexed" and "type indexed name".
// Unnamed parameters are called argN.
func parseParameter(paramStr string, index int) (EventParam, error) {
	parts := strings.Fields(paramStr)
	if len(parts) == 0 {
		return EventParam{}, fmt.Errorf("empty parameter")
	}

	param := EventParam{Type: parts[0], Name: fmt.Sprintf("arg%d", index)}
	if !isValidSolidityType(param.Type) {
		return EventParam{}, fmt.Errorf("invalid Solidity type: %s", param.Type)
	}

	switch len(parts) {
	case 1:
	case 2: //nolint:mnd
		if parts[1] == "indexed" {
			param.Indexed = true
		} else {
			param.Name = parts[1]
		}
	case 3: //nolint:mnd
		if parts[1] != "indexed" {
			return EventParam{}, fmt.Errorf("expected 'indexed' keyword, got '%s'", parts[1])
		}
		param.Indexed = true
		param.Name = parts[2]
	default:
		return EventParam{}, fmt.Errorf("too many parts in parameter definition")
	}

	if !paramNameRe.MatchString(param.Name) {
		return EventParam{}, fmt.Errorf("invalid parameter name: %s", param.Name)
	}

	return param, nil
}

func isValidSolidityType(typ string) bool {
	switch typ {
	case "address", "bool", "string", "bytes":
		return true
	}

	if bytesNRe.MatchString(typ) || intNRe.MatchString(typ) {
		return true
	}

	if strings.HasSuffix(typ, "[]") {
		return isValidSolidityType(strings.TrimSuffix(typ, "[]"))
	}

	if fixedArrRe.MatchString(typ) {
		return isValidSolidityType(fixedArrRe.ReplaceAllString(typ, ""))
	}

	return false
}

// canonicalType expands the uint/int aliases, keeping any array suffix.
func canonicalType(typ string) string {
	base, suffix := typ, ""
	if i := strings.Index(typ, "["); i >= 0 {
		base, suffix = typ[:i], typ[i:]
	}

	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	}

	return base + suffix
}
