package content

import "github.com/tidwall/gjson"

// schemaMatch locates the pieces of one schema inside a decoded document.
type schemaMatch struct {
	initiative gjson.Result
	context    gjson.Result
}

// schemaMatcher recognizes one content schema.
type schemaMatcher struct {
	name  string
	match func(doc []byte) (schemaMatch, bool)
}

// schemas are tried in order; the first match is the source of truth.
var schemas = []schemaMatcher{
	{name: "direct", match: matchDirect},
	{name: "legacy", match: matchLegacy},
}

// matchDirect accepts {"initiative": {...}, "stakeholderContext": {...}}.
func matchDirect(doc []byte) (schemaMatch, bool) {
	ini := gjson.GetBytes(doc, "initiative")
	if !ini.IsObject() {
		return schemaMatch{}, false
	}
	return schemaMatch{
		initiative: ini,
		context:    gjson.GetBytes(doc, "stakeholderContext"),
	}, true
}

// matchLegacy accepts {"data": [{"initiative": {...}, "stakeholderContext": {...}}, ...]}.
// Only the first element is canonical.
func matchLegacy(doc []byte) (schemaMatch, bool) {
	if !gjson.GetBytes(doc, "data").IsArray() {
		return schemaMatch{}, false
	}
	first := gjson.GetBytes(doc, "data.0")
	ini := first.Get("initiative")
	if !ini.IsObject() {
		return schemaMatch{}, false
	}
	return schemaMatch{
		initiative: ini,
		context:    first.Get("stakeholderContext"),
	}, true
}

func (m schemaMatch) canonical(doc []byte) *Canonical {
	ini := initiativeFrom(m.initiative)
	c := &Canonical{Initiative: ini}

	if m.context.IsObject() {
		c.StakeholderContext = make(map[string]string)
		m.context.ForEach(func(key, value gjson.Result) bool {
			c.StakeholderContext[key.String()] = value.String()
			return true
		})
	}

	if total := gjson.GetBytes(doc, "totalStories"); total.Type == gjson.Number {
		c.TotalStories = int(total.Int())
	} else {
		c.TotalStories = countStories(ini)
	}
	c.ReadyForJira = gjson.GetBytes(doc, "readyForJira").Bool()

	return c
}

// The builders below read the tree leaf by leaf. A scalar of the wrong type
// is coerced to its text form and a mistyped container is treated as empty,
// so one bad leaf never hides the rest of the initiative.

func initiativeFrom(r gjson.Result) *Initiative {
	ini := &Initiative{
		Key:          r.Get("key").String(),
		Summary:      r.Get("summary").String(),
		Description:  r.Get("description").String(),
		Stakeholders: stringsFrom(r.Get("stakeholders")),
	}
	if epics := r.Get("epics"); epics.IsArray() {
		ini.Epics = make([]Epic, 0, len(epics.Array()))
		for _, e := range epics.Array() {
			ini.Epics = append(ini.Epics, epicFrom(e))
		}
	}
	return ini
}

func epicFrom(r gjson.Result) Epic {
	e := Epic{
		Key:         r.Get("key").String(),
		Summary:     r.Get("summary").String(),
		Description: r.Get("description").String(),
	}
	if stories := r.Get("stories"); stories.IsArray() {
		e.Stories = make([]Story, 0, len(stories.Array()))
		for _, s := range stories.Array() {
			e.Stories = append(e.Stories, storyFrom(s))
		}
	}
	return e
}

func storyFrom(r gjson.Result) Story {
	return Story{
		Key:                r.Get("key").String(),
		AsA:                r.Get("asA").String(),
		IWant:              r.Get("iWant").String(),
		SoThat:             r.Get("soThat").String(),
		AcceptanceCriteria: stringsFrom(r.Get("acceptanceCriteria")),
	}
}

// stringsFrom reads a list of strings. A lone scalar becomes a one-item list.
func stringsFrom(r gjson.Result) []string {
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return nil
	case r.IsArray():
		out := make([]string, 0, len(r.Array()))
		for _, v := range r.Array() {
			out = append(out, v.String())
		}
		return out
	case r.IsObject():
		return nil
	default:
		if s := r.String(); s != "" {
			return []string{s}
		}
		return nil
	}
}
