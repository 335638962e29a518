package typesense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFacilitiesSchema(t *testing.T) {
	schema := FacilitiesSchema()

	assert.Equal(t, FacilitiesCollection, schema.Name)
	assert.Equal(t, "created_at", *schema.DefaultSortingField)

	fields := map[string]string{}
	for _, f := range schema.Fields {
		fields[f.Name] = f.Type
	}
	assert.Equal(t, "geopoint", fields["location"])
	assert.Equal(t, "bool", fields["managed_by_pipeline"])
	assert.Equal(t, "string", fields["province"])
}
