package dump

import "fflagdump/internal/scanner"

// Signatures of the two compiler-generated code shapes the decoder follows.
const (
	// FlagDefPattern matches a registration thunk call:
	// mov r8d, type; lea rdx, slot; lea rcx, name; jmp register.
	FlagDefPattern = "41 B8 ?? ?? ?? ?? 48 8D 15 ?? ?? ?? ?? 48 8D 0D ?? ?? ?? ?? E9 ?? ?? ?? ??"

	// StringInitPattern matches a string flag initializer:
	// movups xmm0, [literal]; mov qword [slot], len.
	StringInitPattern = "48 83 EC ?? B9 ?? ?? ?? ?? E8 ?? ?? ?? ?? 0F 10 05 ?? ?? ?? ?? 48 C7 05 ?? ?? ?? ?? ?? ?? ?? ??"

	flagDefSize    = 25
	stringInitSize = 32
)

// Layout constants observed in the registration code. They are tied to one
// compiler's output and must not be derived.
const (
	// The string initializer's slot displacement lands 12 bytes past the
	// slot the registration call references.
	stringSlotBias = 12

	thunkProbe       = 0x4053 // rex push rbx
	thunkSkipProbed  = 35
	thunkSkipDefault = 15
	thunkWindow      = 0x3D
	stubTagOffset    = 8
	stubWindow       = 12
)

// Patterns holds the parsed signatures used by a Decoder.
type Patterns struct {
	FlagDef    scanner.Pattern
	StringInit scanner.Pattern
}

var defaultPatterns = Patterns{
	FlagDef:    scanner.MustParse(FlagDefPattern),
	StringInit: scanner.MustParse(StringInitPattern),
}

// DefaultPatterns returns the built-in signatures.
func DefaultPatterns() Patterns { return defaultPatterns }

// ParsePatterns parses signature overrides; an empty string keeps the default.
func ParsePatterns(flagDef, stringInit string) (Patterns, error) {
	p := defaultPatterns
	var err error
	if flagDef != "" {
		if p.FlagDef, err = scanner.Parse(flagDef); err != nil {
			return Patterns{}, err
		}
	}
	if stringInit != "" {
		if p.StringInit, err = scanner.Parse(stringInit); err != nil {
			return Patterns{}, err
		}
	}
	return p, nil
}

// SectionNames names the code, read-only data and writable data sections.
type SectionNames struct {
	Code   string
	ROData string
	Data   string
}

// DefaultSections returns the MSVC section names.
func DefaultSections() SectionNames {
	return SectionNames{Code: ".text", ROData: ".rdata", Data: ".data"}
}
