package dump

import "fflagdump/internal/binfmt"

// Resolve follows a RIP-relative displacement. base is the virtual address of
// the section holding the instruction, match the offset of the matched
// window inside it, cursor the window position just after the displacement
// field and target the virtual address of the section the result indexes.
// Arithmetic wraps at 32 bits.
func Resolve(base, match, cursor uint32, disp int32, target uint32) uint32 {
	return base + match + cursor + uint32(disp) - target
}

// resolveRel reads a little-endian displacement from s and resolves it.
func resolveRel(s *binfmt.Stream, match int, base, target uint32) (uint32, error) {
	disp, err := s.ReadI32LE()
	if err != nil {
		return 0, err
	}
	return Resolve(base, uint32(match), uint32(s.Pos()), disp, target), nil
}
