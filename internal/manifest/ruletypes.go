package manifest

// ParamSpec documents one parameter key a processor reads.
type ParamSpec struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// RuleTypeSpec documents the params shape for one rule type.
type RuleTypeSpec struct {
	Type        RuleType    `json:"type"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// ruleTypes is the lookup table of known rule types. Adding a type here is
// all the control plane needs; params are interpreted by the agents.
var ruleTypes = []RuleTypeSpec{
	{
		Type:        RuleFilter,
		Description: "Drop records whose body contains value.",
		Params: []ParamSpec{
			{Name: "value", Required: true, Description: "substring to match"},
			{Name: "key", Description: "field the value belongs to, informational"},
		},
	},
	{
		Type:        RuleRedact,
		Description: "Replace every regex match in the body.",
		Params: []ParamSpec{
			{Name: "pattern", Required: true, Description: "regular expression"},
			{Name: "replacement", Required: true, Description: "replacement text"},
		},
	},
	{
		Type:        RuleAttributeFilter,
		Description: "Drop records whose attribute matches; exactly one of attribute or path.",
		Params: []ParamSpec{
			{Name: "attribute", Description: "well-known attribute name, e.g. service.name"},
			{Name: "path", Description: "explicit path, e.g. resource/attributes/custom.field"},
			{Name: "operator", Required: true, Description: "equals | contains | regex"},
			{Name: "value", Required: true, Description: "value compared against"},
		},
	},
}

var ruleTypeIndex = func() map[RuleType]RuleTypeSpec {
	idx := make(map[RuleType]RuleTypeSpec, len(ruleTypes))
	for _, s := range ruleTypes {
		idx[s.Type] = s
	}
	return idx
}()

// LookupRuleType returns the spec for t.
func LookupRuleType(t RuleType) (RuleTypeSpec, bool) {
	s, ok := ruleTypeIndex[t]
	return s, ok
}

// RuleTypes returns all known rule type specs in declaration order.
func RuleTypes() []RuleTypeSpec {
	out := make([]RuleTypeSpec, len(ruleTypes))
	for i, s := range ruleTypes {
		s.Params = append([]ParamSpec(nil), s.Params...)
		out[i] = s
	}
	return out
}

// MissingParams lists required params for r's type that r does not set.
// Unknown types report nothing.
func MissingParams(r ProcessorRule) []string {
	spec, ok := LookupRuleType(r.Type)
	if !ok {
		return nil
	}
	var missing []string
	for _, p := range spec.Params {
		if p.Required && r.Params[p.Name] == "" {
			missing = append(missing, p.Name)
		}
	}
	return missing
}
