package main

import (
	"os"
	"reflect"
	"strings"

	musgen "github.com/mus-format/musgen-go/mus"
	genops "github.com/mus-format/musgen-go/options/generate"
	structops "github.com/mus-format/musgen-go/options/struct"
	typeops "github.com/mus-format/musgen-go/options/type"
	"github.com/poiesic/textidx/core"
)

// musgen prints the generated index record serializers to stdout. The
// checked-in core/records_mus.go keeps the field order produced here and adds
// the zero-time encoding and term count checks; diff against this output
// after adding or reordering IndexRecord fields.
func main() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	// If we're in the core subpackage, cd up to project root
	if strings.HasSuffix(cwd, "core") {
		if err := os.Chdir(".."); err != nil {
			panic(err)
		}
	}
	g, err := musgen.NewCodeGenerator(
		genops.WithPkgPath("github.com/poiesic/textidx/core"),
	)
	if err != nil {
		panic(err)
	}

	g.AddDefinedType(reflect.TypeFor[core.ID]())
	g.AddDefinedType(reflect.TypeFor[core.EntityType]())
	g.AddDefinedType(reflect.TypeFor[core.Field]())

	// Unix micro timestamps
	opts := typeops.WithTimeUnit(typeops.Micro)
	err = g.AddStruct(reflect.TypeFor[core.IndexRecord](),
		structops.WithField(), // Id
		structops.WithField(), // Owner
		structops.WithField(), // UltimateOwner
		structops.WithField(), // Type
		structops.WithField(), // Field
		structops.WithField(), // Terms
		structops.WithField(opts),
		structops.WithField(opts))
	if err != nil {
		panic(err)
	}

	bs, err := g.Generate()
	if err != nil {
		panic(err)
	}

	if _, err := os.Stdout.Write(bs); err != nil {
		panic(err)
	}
}
