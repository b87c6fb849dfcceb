package issue

import (
	"fmt"
	"strings"
)

// Kind identifies the category of a reported issue.
// Its numeric value doubles as the issue code printed as (E%03d).
type Kind int

const (
	None Kind = iota
	UndefinedVariable
	PossiblyUndefinedVariable
	UndefinedFunction
	UndefinedMethod
	UndefinedClass
	UndefinedPropertyFetch
	InvalidArgument
	PossiblyInvalidArgument
	TooFewArguments
	TooManyArguments
	NullReference
	PossiblyNullReference
	InvalidReturnType
	MissingReturnType
	UnreachableCode
	RedundantCondition
	TypeDoesNotContainType
	ParadoxicalCondition
	UnhandledMatchCondition
	UnrecognizedStatement
	InvalidDocblock
	DuplicateDeclaration
	Trace
	ParseError
	InternalError
	numKinds
)

var kindNames = [numKinds]string{
	None:                      "None",
	UndefinedVariable:         "UndefinedVariable",
	PossiblyUndefinedVariable: "PossiblyUndefinedVariable",
	UndefinedFunction:         "UndefinedFunction",
	UndefinedMethod:           "UndefinedMethod",
	UndefinedClass:            "UndefinedClass",
	UndefinedPropertyFetch:    "UndefinedPropertyFetch",
	InvalidArgument:           "InvalidArgument",
	PossiblyInvalidArgument:   "PossiblyInvalidArgument",
	TooFewArguments:           "TooFewArguments",
	TooManyArguments:          "TooManyArguments",
	NullReference:             "NullReference",
	PossiblyNullReference:     "PossiblyNullReference",
	InvalidReturnType:         "InvalidReturnType",
	MissingReturnType:         "MissingReturnType",
	UnreachableCode:           "UnreachableCode",
	RedundantCondition:        "RedundantCondition",
	TypeDoesNotContainType:    "TypeDoesNotContainType",
	ParadoxicalCondition:      "ParadoxicalCondition",
	UnhandledMatchCondition:   "UnhandledMatchCondition",
	UnrecognizedStatement:     "UnrecognizedStatement",
	InvalidDocblock:           "InvalidDocblock",
	DuplicateDeclaration:      "DuplicateDeclaration",
	Trace:                     "Trace",
	ParseError:                "ParseError",
	InternalError:             "InternalError",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind looks a kind up by its name, case-insensitively.
func ParseKind(name string) (Kind, bool) {
	for k := None + 1; k < numKinds; k++ {
		if strings.EqualFold(kindNames[k], name) {
			return k, true
		}
	}
	return None, false
}

// Kinds lists every reportable kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds-1)
	for k := None + 1; k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Severity is the ordered scale a SeverityResolver maps issues onto.
type Severity int

const (
	Suppress Severity = iota
	Info
	Error
)

func (s Severity) String() string {
	switch s {
	case Suppress:
		return "suppress"
	case Info:
		return "info"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "suppress":
		return Suppress, nil
	case "info":
		return Info, nil
	case "error":
		return Error, nil
	}
	return Suppress, fmt.Errorf("unknown error level %q, expected one of suppress, info, error", s)
}
