package capability

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// decodeArgs populates an input struct from resolved argument values. Fields
// carry hcl struct tags, `hcl:"name"` for required arguments and
// `hcl:"name,optional"` for optional ones; a field of type cty.Value accepts
// any argument as-is, which is how capabilities take structured data without
// committing to a shape.
func decodeArgs(args map[string]cty.Value, input any) error {
	structVal := reflect.ValueOf(input).Elem()
	structType := structVal.Type()

	declared := make(map[string]struct{}, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("hcl")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		name := parts[0]
		optional := len(parts) > 1 && parts[1] == "optional"
		declared[name] = struct{}{}

		val, present := args[name]
		if !present || val.IsNull() {
			if optional {
				continue
			}
			return fmt.Errorf("missing required argument '%s'", name)
		}

		fieldVal := structVal.Field(i)
		if field.Type == ctyValueType {
			fieldVal.Set(reflect.ValueOf(val))
			continue
		}
		if err := gocty.FromCtyValue(val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("argument '%s': %w", name, err)
		}
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("unexpected argument '%s'", name)
		}
	}
	return nil
}
