// Package normalize maps extracted case fields onto canonical values.
package normalize

import (
	"regexp"
	"strings"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/textutil"
)

type synonymGroup struct {
	canonical string
	synonyms  []string
}

var symptomSynonyms = []synonymGroup{
	{"두통", []string{"머리아픔", "머리가 아픔", "두중", "편두통", "머리통증"}},
	{"복통", []string{"배아픔", "배가 아픔", "위통", "복부통증"}},
	{"어지러움", []string{"현훈", "어지럼증", "현기증", "빙빙 돌음"}},
	{"불면", []string{"불면증", "잠을 못 잠", "수면장애", "불수면"}},
	{"피로", []string{"피곤함", "권태", "무력감", "기력저하"}},
	{"소화불량", []string{"소화가 안됨", "체함", "식체", "더부룩"}},
	{"변비", []string{"대변이 안 나옴", "배변곤란"}},
	{"설사", []string{"설변", "묽은 변", "수양변"}},
}

var genderTokens = map[string]domain.Gender{
	"m": domain.GenderMale, "male": domain.GenderMale, "남": domain.GenderMale,
	"남자": domain.GenderMale, "남성": domain.GenderMale, "男": domain.GenderMale,
	"f": domain.GenderFemale, "female": domain.GenderFemale, "여": domain.GenderFemale,
	"여자": domain.GenderFemale, "여성": domain.GenderFemale, "女": domain.GenderFemale,
}

type constitutionAlias struct {
	token, canonical string
}

var constitutionAliases = []constitutionAlias{
	{"少陰人", domain.ConstitutionSoeum}, {"太陰人", domain.ConstitutionTaeeum},
	{"少陽人", domain.ConstitutionSoyang}, {"太陽人", domain.ConstitutionTaeyang},
	{"소음", domain.ConstitutionSoeum}, {"태음", domain.ConstitutionTaeeum},
	{"소양", domain.ConstitutionSoyang}, {"태양", domain.ConstitutionTaeyang},
}

var (
	formulaQualifier = regexp.MustCompile(`\([^)]*\)|（[^）]*）`)
	trailingNumerals = regexp.MustCompile(`[\p{Z}\s\d]+$`)
)

// Normalize returns a copy of c with canonical field values. It is idempotent.
func Normalize(c domain.CandidateCase) domain.CandidateCase {
	c.Title = textutil.Clean(c.Title)
	c.ChiefComplaint = textutil.Clean(c.ChiefComplaint)
	c.Diagnosis = textutil.Clean(c.Diagnosis)
	c.Differentiation = textutil.Clean(c.Differentiation)
	c.Result = textutil.Clean(c.Result)

	c.Patient.Gender = Gender(string(c.Patient.Gender))
	c.Patient.Constitution = Constitution(c.Patient.Constitution)
	c.Symptoms = Symptoms(c.Symptoms)
	c.FormulaName = Formula(c.FormulaName)

	if len(c.Progress) > 0 {
		progress := make([]domain.ProgressEntry, 0, len(c.Progress))
		for _, p := range c.Progress {
			p.Marker = textutil.Clean(p.Marker)
			p.Note = textutil.Clean(p.Note)
			progress = append(progress, p)
		}
		c.Progress = progress
	}

	c.SearchText = SearchText(c)
	return c
}

// Gender maps a gender token to M or F. Unrecognised tokens are returned trimmed so the
// validator can report them.
func Gender(token string) domain.Gender {
	t := strings.ToLower(strings.TrimSpace(token))
	if g, ok := genderTokens[t]; ok {
		return g
	}
	return domain.Gender(strings.TrimSpace(token))
}

// Constitution maps hangul, abbreviated and hanja constitution names to the canonical form.
func Constitution(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	for _, alias := range constitutionAliases {
		if strings.Contains(v, alias.token) {
			return alias.canonical
		}
	}
	return v
}

// Symptoms cleans, maps synonyms and drops repeated symptoms while keeping order.
func Symptoms(symptoms []domain.Symptom) []domain.Symptom {
	if len(symptoms) == 0 {
		return symptoms
	}
	seen := make(map[string]bool, len(symptoms))
	out := make([]domain.Symptom, 0, len(symptoms))
	for _, s := range symptoms {
		name := textutil.Clean(s.Name)
		if name == "" {
			continue
		}
		name = canonicalSymptom(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		source := textutil.Clean(s.Source)
		if source == "" {
			source = name
		}
		out = append(out, domain.Symptom{Name: name, Source: source})
	}
	return out
}

func canonicalSymptom(name string) string {
	for _, group := range symptomSynonyms {
		for _, syn := range group.synonyms {
			if strings.Contains(name, syn) {
				return group.canonical
			}
		}
	}
	return name
}

// Formula strips parenthetical qualifiers and trailing numerals from a formula name.
func Formula(name string) string {
	name = formulaQualifier.ReplaceAllString(textutil.CollapseSpace(name), "")
	name = trailingNumerals.ReplaceAllString(textutil.CollapseSpace(name), "")
	return textutil.CollapseSpace(name)
}

// SearchText concatenates the searchable fields of a case.
func SearchText(c domain.CandidateCase) string {
	names := make([]string, 0, len(c.Symptoms))
	for _, s := range c.Symptoms {
		names = append(names, s.Name)
	}
	parts := []string{
		c.FormulaName, c.Title, c.ChiefComplaint, strings.Join(names, " "),
		c.Diagnosis, c.Differentiation, c.Patient.Constitution,
	}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
