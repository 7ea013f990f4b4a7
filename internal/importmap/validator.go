package importmap

import (
	"fmt"

	"github.com/nhle/tracker/internal/errs"
)

// Validate reports every required old value that has no mapping. Each
// miss becomes a field error keyed "<kind>:<old id>" and the collection
// gains the VALIDATION_FAILED reason.
func Validate(p *ProjectImportMapper, ec *errs.Collection) {
	for _, m := range p.All() {
		ValidateMapper(m, ec)
	}
}

// ValidateMapper reports the unmapped required values of one mapper.
func ValidateMapper(m *Mapper, ec *errs.Collection) {
	for _, oldID := range m.UnmappedRequiredOldIDs() {
		key, _ := m.Key(oldID)
		ec.AddErrorWithReason(
			fmt.Sprintf("%s:%s", m.Kind(), oldID),
			fmt.Sprintf("required %s %q has no match in this instance", m.Kind(), key),
			errs.ReasonValidationFailed,
		)
	}
}
