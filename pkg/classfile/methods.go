package classfile

import "cminor.dev/jvmgen/pkg/codegen"

// writeMethod emits one method_info: access flags, name/descriptor, and a
// single Code attribute (every Cminor function compiles to a static
// method with a body; there are no native/abstract methods and no
// checked-exceptions list to declare).
func writeMethod(w *writer, p *pool, m *codegen.Method) error {
	flags := accPublic
	if m.IsStatic {
		flags |= accStatic
	}
	w.u2(flags)
	w.u2(p.b.AddUTF8(m.Name))
	w.u2(p.b.AddUTF8(m.Descriptor))

	w.u2(1) // attributes_count: Code only
	return writeCodeAttribute(w, p, m)
}
