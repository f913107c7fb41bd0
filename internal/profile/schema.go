package profile

var requiredFields = map[Role][]string{
	Professional: {"domain", "experience", "help", "expectations", "about", "histoires", "passions"},
	Researcher:   {"expectations", "about", "histoires", "centres_interets"},
}

// RequiredFields returns the ordered field names collected for role.
// The returned slice is a copy. Unknown roles yield nil.
func RequiredFields(role Role) []string {
	fields := requiredFields[role]
	if fields == nil {
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// Missing returns the role's fields that have no non-empty value in known,
// in schema order.
func Missing(role Role, known FieldSet) []string {
	var out []string
	for _, name := range requiredFields[role] {
		if isEmpty(known[name]) {
			out = append(out, name)
		}
	}
	return out
}

// Restrict returns the subset of in whose keys belong to the role's schema,
// plus the names of the dropped keys.
func Restrict(role Role, in FieldSet) (kept FieldSet, dropped []string) {
	allowed := make(map[string]bool, len(requiredFields[role]))
	for _, name := range requiredFields[role] {
		allowed[name] = true
	}
	kept = make(FieldSet, len(in))
	for k, v := range in {
		if allowed[k] {
			kept[k] = v
			continue
		}
		dropped = append(dropped, k)
	}
	return kept, dropped
}
