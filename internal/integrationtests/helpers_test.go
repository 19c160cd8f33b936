package integrationtests

import "github.com/zclconf/go-cty/cty"

// Shared fake-capability input shapes. cty.Value fields accept any
// structured argument without committing to a type.
type dataInput struct {
	Data cty.Value `hcl:"data,optional"`
}

type dbInput struct {
	Db cty.Value `hcl:"db,optional"`
}
