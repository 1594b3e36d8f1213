package classfile

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/codegen"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// internAll walks every field and method this class will serialize and
// interns whatever UTF8/Class constants they still need but codegen never
// had reason to intern itself: a function nothing in the class calls
// never gets a Methodref (and so never gets its own name/descriptor
// interned), attribute name strings like "Code" are never referenced by
// bytecode at all, and a StackMapTable's conservative Object verification
// types can name classes no instruction in the method ever loads.
//
// This must run to completion before the constant_pool_count and entries
// are written: every later AddUTF8/AddClass call in this package is a
// lookup against an already-complete pool, never a fresh append.
func internAll(cp *pool, cls *codegen.Class) error {
	cp.b.AddUTF8("Code")

	for i := range cls.Globals {
		desc, err := jvmtypes.Descriptor(cls.Globals[i].Type)
		if err != nil {
			return fmt.Errorf("field %q: %w", cls.Globals[i].Name, err)
		}
		cp.b.AddUTF8(cls.Globals[i].Name)
		cp.b.AddUTF8(desc)
	}

	for i := range cls.Methods {
		m := &cls.Methods[i]
		cp.b.AddUTF8(m.Name)
		cp.b.AddUTF8(m.Descriptor)
		if len(m.LineTable) > 0 {
			cp.b.AddUTF8("LineNumberTable")
		}
		if len(m.StackFrames) > 0 {
			cp.b.AddUTF8("StackMapTable")
			for _, f := range m.StackFrames {
				internVerificationTypes(cp, f.Locals)
				internVerificationTypes(cp, f.Stack)
			}
		}
	}
	return nil
}

func internVerificationTypes(cp *pool, vts []codebuilder.VerificationType) {
	for _, vt := range vts {
		if vt.Tag == "Object" {
			cp.b.AddClass(vt.ClassName)
		}
	}
}
