package store

import "reflect"

// decisionIDOf extracts the DecisionID field from an opaque decision
// trace record. domain.PersistenceManager.SaveDecisionTrace takes `any`
// rather than *trace.Record because internal/domain must not import
// internal/amas/trace (it would invert the dependency direction every
// other amas/* package relies on); reflection is the price of keeping
// that boundary, paid once per save.
func decisionIDOf(record any) (string, bool) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}
	f := v.FieldByName("DecisionID")
	if !f.IsValid() || f.Kind() != reflect.String {
		return "", false
	}
	return f.String(), true
}
