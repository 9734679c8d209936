package ir

import "strings"

// SimplifyName strips the compiler-generated suffixes bitcode linkage
// names commonly carry so that two definitions of "the same" function
// (e.g. multiple llvm.memcpy.* intrinsic instantiations, or a function
// cloned as "foo.1", "foo.2" by an optimization pass) collapse to one
// logical name for grouping purposes.
//
// Two shapes are recognized:
//   - "llvm.memcpy.p0i8.p0i8.i64" -> "memcpy" (the first dot-delimited
//     segment after the "llvm." prefix)
//   - "foo.123" -> "foo" (anything else before the first dot)
//
// Names with no dot at all are returned unchanged.
func SimplifyName(name string) string {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return name
	}
	if name[:i] != "llvm" {
		return name[:i]
	}
	rest := name[i+1:]
	if j := strings.IndexByte(rest, '.'); j >= 0 {
		return rest[:j]
	}
	return rest
}
