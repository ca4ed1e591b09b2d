package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sells-group/sports-intake/internal/model"
)

// Domain bounds.
const (
	MaxScore   = 250
	MaxJersey  = 99
	MinGrade   = 6
	MaxGrade   = 12
	dateLayout = "2006-01-02"
)

// gradeLabels maps class-year labels onto numeric grades.
var gradeLabels = map[string]int{
	"fr": 9, "freshman": 9,
	"so": 10, "soph": 10, "sophomore": 10,
	"jr": 11, "junior": 11,
	"sr": 12, "senior": 12,
}

func scoreSheetRules(doc map[string]any) []model.Finding {
	var out []model.Finding
	out = append(out, requireString(doc, "", "home_team")...)
	out = append(out, requireString(doc, "", "away_team")...)
	out = append(out, requirePresent(doc, "", "home_score")...)
	out = append(out, requirePresent(doc, "", "away_score")...)
	out = append(out, requireString(doc, "", "game_date")...)

	home, homeOK := intField(doc, "home_score")
	away, awayOK := intField(doc, "away_score")
	if homeOK {
		out = append(out, scoreRange("home_score", home)...)
	}
	if awayOK {
		out = append(out, scoreRange("away_score", away)...)
	}
	out = append(out, dateValue(doc, "", "game_date")...)

	ht, _ := stringField(doc, "home_team")
	at, _ := stringField(doc, "away_team")
	if ht != "" && strings.EqualFold(strings.TrimSpace(ht), strings.TrimSpace(at)) {
		out = append(out, model.NewFinding(model.FindingInvalidValue, "away_team", "home_team and away_team are the same team"))
	}

	if c, ok := numberField(doc, "confidence"); ok && (c < 0 || c > 1) {
		out = append(out, model.NewFinding(model.FindingInvalidRange, "confidence",
			fmt.Sprintf("confidence %g is outside 0..1", c)))
	}

	periods, _ := doc["periods"].([]any)
	homeSum, awaySum, complete := 0, 0, len(periods) > 0
	for i, raw := range periods {
		p, ok := raw.(map[string]any)
		if !ok {
			complete = false
			continue
		}
		prefix := fmt.Sprintf("periods[%d]", i)
		ph, phOK := intField(p, "home")
		pa, paOK := intField(p, "away")
		if phOK && ph < 0 {
			out = append(out, model.NewFinding(model.FindingInvalidRange, prefix+".home",
				fmt.Sprintf("%s.home %d is negative", prefix, ph)))
		}
		if paOK && pa < 0 {
			out = append(out, model.NewFinding(model.FindingInvalidRange, prefix+".away",
				fmt.Sprintf("%s.away %d is negative", prefix, pa)))
		}
		if !phOK || !paOK {
			complete = false
			continue
		}
		homeSum += ph
		awaySum += pa
	}
	if complete && homeOK && homeSum != home {
		out = append(out, model.NewFinding(model.FindingInvalidValue, "periods",
			fmt.Sprintf("home period scores sum to %d but home_score is %d", homeSum, home)))
	}
	if complete && awayOK && awaySum != away {
		out = append(out, model.NewFinding(model.FindingInvalidValue, "periods",
			fmt.Sprintf("away period scores sum to %d but away_score is %d", awaySum, away)))
	}
	return out
}

func scheduleRules(doc map[string]any) []model.Finding {
	var out []model.Finding
	out = append(out, requireString(doc, "", "school")...)
	out = append(out, requireString(doc, "", "sport")...)

	games, missing := requireList(doc, "games")
	out = append(out, missing...)
	for i, raw := range games {
		g, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("games[%d]", i)
		out = append(out, requireString(g, prefix, "date")...)
		out = append(out, requireString(g, prefix, "opponent")...)
		out = append(out, dateValue(g, prefix, "date")...)
		if loc, ok := stringField(g, "location"); ok && loc != "" {
			switch model.Location(strings.ToLower(loc)) {
			case model.LocationHome, model.LocationAway, model.LocationNeutral:
			default:
				out = append(out, model.NewFinding(model.FindingInvalidValue, prefix+".location",
					fmt.Sprintf("%s.location %q must be home, away or neutral", prefix, loc)))
			}
		}
	}
	return out
}

func rosterRules(doc map[string]any) []model.Finding {
	var out []model.Finding
	out = append(out, requireString(doc, "", "school")...)
	out = append(out, requireString(doc, "", "sport")...)

	players, missing := requireList(doc, "players")
	out = append(out, missing...)
	for i, raw := range players {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("players[%d]", i)
		out = append(out, requireString(p, prefix, "first_name")...)
		out = append(out, requireString(p, prefix, "last_name")...)

		if jersey, ok := stringField(p, "jersey_number"); ok && strings.TrimSpace(jersey) != "" {
			out = append(out, jerseyValue(prefix+".jersey_number", jersey)...)
		}
		if grade, ok := stringField(p, "grade"); ok && strings.TrimSpace(grade) != "" {
			out = append(out, gradeValue(prefix+".grade", grade)...)
		}
	}
	return out
}

// --- field helpers ---

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// requireString reports a missing_field unless key holds a non-blank string.
// Values of the wrong type are left to the schema check.
func requireString(obj map[string]any, prefix, key string) []model.Finding {
	v, present := obj[key]
	if present && v != nil {
		s, isString := v.(string)
		if !isString || strings.TrimSpace(s) != "" {
			return nil
		}
	}
	path := join(prefix, key)
	return []model.Finding{model.NewFinding(model.FindingMissingField, path, path+" is required")}
}

// requireList returns the array under key, or a missing_field finding when
// it is absent or empty. Non-array values are left to the schema check.
func requireList(obj map[string]any, key string) ([]any, []model.Finding) {
	switch v := obj[key].(type) {
	case nil:
	case []any:
		if len(v) > 0 {
			return v, nil
		}
	default:
		return nil, nil
	}
	return nil, []model.Finding{model.NewFinding(model.FindingMissingField, key, key+" is required")}
}

func requirePresent(obj map[string]any, prefix, key string) []model.Finding {
	if v, ok := obj[key]; ok && v != nil {
		return nil
	}
	path := join(prefix, key)
	return []model.Finding{model.NewFinding(model.FindingMissingField, path, path+" is required")}
}

func stringField(obj map[string]any, key string) (string, bool) {
	s, ok := obj[key].(string)
	return s, ok
}

func numberField(obj map[string]any, key string) (float64, bool) {
	n, ok := obj[key].(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

func intField(obj map[string]any, key string) (int, bool) {
	f, ok := numberField(obj, key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func scoreRange(path string, v int) []model.Finding {
	if v < 0 || v > MaxScore {
		return []model.Finding{model.NewFinding(model.FindingInvalidRange, path,
			fmt.Sprintf("%s %d is outside 0..%d", path, v, MaxScore))}
	}
	return nil
}

func dateValue(obj map[string]any, prefix, key string) []model.Finding {
	s, ok := stringField(obj, key)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, strings.TrimSpace(s)); err != nil {
		path := join(prefix, key)
		return []model.Finding{model.NewFinding(model.FindingInvalidValue, path,
			fmt.Sprintf("%s %q is not a YYYY-MM-DD date", path, s))}
	}
	return nil
}

// jerseyValue checks the numeric part of a jersey such as "#12".
func jerseyValue(path, raw string) []model.Finding {
	digits := strings.TrimFunc(strings.TrimSpace(raw), func(r rune) bool { return !unicode.IsDigit(r) })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return []model.Finding{model.NewFinding(model.FindingInvalidValue, path,
			fmt.Sprintf("%s %q is not a number", path, raw))}
	}
	if n < 0 || n > MaxJersey {
		return []model.Finding{model.NewFinding(model.FindingInvalidRange, path,
			fmt.Sprintf("%s %d is outside 0..%d", path, n, MaxJersey))}
	}
	return nil
}

func gradeValue(path, raw string) []model.Finding {
	g := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := gradeLabels[strings.TrimSuffix(g, ".")]; ok {
		return nil
	}
	g = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(g, "th"), "st"), "nd")
	n, err := strconv.Atoi(g)
	if err != nil {
		return []model.Finding{model.NewFinding(model.FindingInvalidValue, path,
			fmt.Sprintf("%s %q is not a grade", path, raw))}
	}
	if n < MinGrade || n > MaxGrade {
		return []model.Finding{model.NewFinding(model.FindingInvalidRange, path,
			fmt.Sprintf("%s %d is outside %d..%d", path, n, MinGrade, MaxGrade))}
	}
	return nil
}
