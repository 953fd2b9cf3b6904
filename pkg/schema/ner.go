package schema

// Gazetteer-driven tagging of sampled text. This is deliberately small and
// deterministic: it only has to bias retrieval, not be correct NER.

var (
	personCues = map[string]struct{}{
		"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {},
		"john": {}, "jane": {}, "maria": {}, "michael": {}, "sarah": {},
		"david": {}, "anna": {}, "james": {}, "robert": {}, "linda": {},
	}
	organizationCues = map[string]struct{}{
		"inc": {}, "ltd": {}, "llc": {}, "gmbh": {}, "corp": {},
		"co": {}, "company": {}, "group": {}, "holdings": {}, "plc": {},
		"sa": {}, "ag": {}, "bv": {},
	}
	locationCues = map[string]struct{}{
		"street": {}, "st": {}, "avenue": {}, "ave": {}, "road": {}, "rd": {},
		"north": {}, "south": {}, "east": {}, "west": {},
		"london": {}, "paris": {}, "berlin": {}, "tokyo": {}, "york": {},
		"city": {}, "county": {}, "state": {}, "province": {},
	}
)

const nerMinHits = 3

// SemanticTags scans sampled string values and returns the entity tags whose
// gazetteer cues occur at least nerMinHits times. Empty input yields nil.
func SemanticTags(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	var person, org, loc int
	for _, v := range values {
		for _, tok := range Tokenize(v) {
			if _, ok := personCues[tok]; ok {
				person++
			}
			if _, ok := organizationCues[tok]; ok {
				org++
			}
			if _, ok := locationCues[tok]; ok {
				loc++
			}
		}
	}
	var tags []string
	if person >= nerMinHits {
		tags = append(tags, "person")
	}
	if org >= nerMinHits {
		tags = append(tags, "organization")
	}
	if loc >= nerMinHits {
		tags = append(tags, "location")
	}
	return tags
}
