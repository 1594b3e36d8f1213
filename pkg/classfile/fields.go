package classfile

import (
	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// writeField emits one global's field_info: a plain static field, no
// ConstantValue attribute (globals are always initialized by explicit
// store code in an entry function, never by a compile-time constant).
func writeField(w *writer, p *pool, decl *cminorast.Declaration) error {
	desc, err := jvmtypes.Descriptor(decl.Type)
	if err != nil {
		return err
	}

	w.u2(accPublic | accStatic)
	w.u2(p.b.AddUTF8(decl.Name))
	w.u2(p.b.AddUTF8(desc))
	w.u2(0) // attributes_count
	return nil
}
