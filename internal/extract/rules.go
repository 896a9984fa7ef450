package extract

import (
	"regexp"
	"strconv"
	"strings"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/textutil"
)

// The order of every list in this file is part of the extractor's behaviour:
// rules are evaluated top to bottom and the first accepted match wins.

// caseKeywords gate articles that do not look like case reports at all.
var caseKeywords = []string{"치험례", "증례", "임상례", "case", "환자", "주소증", "변증", "처방"}

// segmentPatterns split an article into per-case blocks.
var segmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:증례|Case|사례)\s*\d+`),
	regexp.MustCompile(`■\s*`),
	regexp.MustCompile(`▶\s*`),
	regexp.MustCompile(`\n\d+\.\s*환자`),
}

// rule pairs a pattern with the function that turns its first capture into a field value.
type rule struct {
	pattern *regexp.Regexp
	accept  func(capture string) (string, bool)
}

func firstMatch(rules []rule, text string) string {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := r.accept(m[1]); ok {
			return v
		}
	}
	return ""
}

func complaintValue(capture string) (string, bool) {
	v := textutil.CollapseSpace(capture)
	if textutil.RuneLen(v) <= 3 {
		return "", false
	}
	return textutil.Truncate(v, 300), true
}

func truncating(n int) func(string) (string, bool) {
	return func(capture string) (string, bool) {
		return textutil.Truncate(strings.TrimSpace(capture), n), true
	}
}

var chiefComplaintRules = []rule{
	{regexp.MustCompile(`(?is)주\s*소\s*증?\s*[:：]\s*(.+?)(?:현병력|과거력|변증|치법|처방|\n|$)`), complaintValue},
	{regexp.MustCompile(`(?is)주\s*증\s*상\s*[:：]?\s*(.+?)(?:부수증상|참고|변증|\n|$)`), complaintValue},
	{regexp.MustCompile(`(?is)C/?C\s*[:：]\s*(.+?)(?:\n|$)`), complaintValue},
	{regexp.MustCompile(`(?is)호\s*소\s*[:：]\s*(.+?)(?:\n|$)`), complaintValue},
	{regexp.MustCompile(`(?is)(?:주소증|주증상|증상)\s*[:：]\s*(.+?)(?:\n|변증|처방|$)`), complaintValue},
}

var diagnosisRules = []rule{
	{regexp.MustCompile(`(?s)진\s*단\s*[:：]?\s*(.+?)(?:변증|치법|처방|\n|$)`), truncating(100)},
	{regexp.MustCompile(`(?:한의학적\s*)?진단명\s*[:：]?\s*(.+?)(?:\n|$)`), truncating(100)},
}

var differentiationRules = []rule{
	{regexp.MustCompile(`(?s)변\s*증\s*[:：]?\s*(.+?)(?:치법|처방|투약|\n|$)`), truncating(200)},
	{regexp.MustCompile(`(?s)변\s*상\s*[:：]?\s*(.+?)(?:치법|처방|\n|$)`), truncating(200)},
}

var resultRules = []rule{
	{regexp.MustCompile(`(?s)(?:치료\s*)?결\s*과\s*[:：]?\s*(.+?)(?:고찰|결론|참고문헌|$)`), truncating(500)},
	{regexp.MustCompile(`(?s)경\s*과\s*[:：]?\s*(.+?)(?:고찰|결론|$)`), truncating(500)},
	{regexp.MustCompile(`(?s)예\s*후\s*[:：]?\s*(.+?)(?:고찰|결론|$)`), truncating(500)},
}

func ageValue(capture string) (string, bool) {
	age, err := strconv.Atoi(capture)
	if err != nil || age <= 0 || age >= 120 {
		return "", false
	}
	return capture, true
}

var ageRules = []rule{
	{regexp.MustCompile(`(\d+)\s*세`), ageValue},
	{regexp.MustCompile(`(\d+)\s*歲`), ageValue},
	{regexp.MustCompile(`환자[:\s]*(\d+)\s*세`), ageValue},
}

// genderRule optionally limits the search to the first window runes of the block.
type genderRule struct {
	pattern *regexp.Regexp
	window  int
}

var genderRules = []genderRule{
	{pattern: regexp.MustCompile(`(남|여)(?:자|성)?\s*[,/]?\s*\d{1,3}\s*세`)},
	{pattern: regexp.MustCompile(`\d{1,3}\s*세\s*[,/]?\s*(남|여)`)},
	{pattern: regexp.MustCompile(`(男|女)`)},
	{pattern: regexp.MustCompile(`(여|女)`), window: 500},
	{pattern: regexp.MustCompile(`(남|男)`), window: 500},
}

func genderFromToken(token string) domain.Gender {
	switch token {
	case "남", "男":
		return domain.GenderMale
	case "여", "女":
		return domain.GenderFemale
	}
	return domain.GenderUnknown
}

// constitutionTokens are searched in order; the normalizer maps hanja forms to hangul.
var constitutionTokens = []string{
	domain.ConstitutionSoeum, domain.ConstitutionTaeeum, domain.ConstitutionSoyang, domain.ConstitutionTaeyang,
	"少陰人", "太陰人", "少陽人", "太陽人",
}

// Formula names end in one of the classical dosage-form suffixes.
var (
	formulaRules = []*regexp.Regexp{
		regexp.MustCompile(`(?:복용|투약|처방|사용)\s*[:：]?\s*([가-힣]{2,10}(?:탕|산|환|단|음|원|전|방|제))`),
		regexp.MustCompile(`([가-힣]{2,10}(?:탕|산|환|단|음|원|전|방|제))\s*(?:을|를|가|이|의|으로|에|처방)?`),
		regexp.MustCompile(`([가-힣]{2,10}(?:탕|산|환|단|음|원|전|방|제))\s*\d*\s*(?:첩|일분|제)?`),
	}
	broadFormulaRule = regexp.MustCompile(`([가-힣]{3,12}(?:탕|산|환|단|음|원|전|방|제))`)
)

var formulaExcludeWords = map[string]bool{
	"처방": true, "투약": true, "복용": true, "증상": true, "경과": true, "참고": true, "변증": true, "치법": true,
	"가감": true, "합방": true, "용량": true, "약제": true, "주증": true, "부증": true, "원방": true, "본방": true,
	"이라고": true, "라고": true, "것이라고": true, "한다고": true,
}

var formulaFalseEndings = []string{
	"하고", "다고", "라고", "아고", "이고", "으로", "없고",
	"있고", "했고", "됐고", "못하고", "않고", "치고", "되고", "지고",
	"순환", "한의원", "의원", "약국", "약방", "병원", "침술",
}

// goFormulas are genuine formulas ending in 고, which otherwise marks a verb ending.
var goFormulas = map[string]bool{
	"경옥고": true, "자옥고": true, "응약고": true, "황련고": true, "자운고": true, "옥용고": true,
}

func isFormulaName(name string) bool {
	if textutil.RuneLen(name) < 3 || formulaExcludeWords[name] {
		return false
	}
	for _, ending := range formulaFalseEndings {
		if strings.HasSuffix(name, ending) {
			return false
		}
	}
	if strings.HasSuffix(name, "고") && !goFormulas[name] {
		return false
	}
	return true
}

var (
	symptomMarker  = regexp.MustCompile(`\d+[.)]\s*`)
	progressMarker = regexp.MustCompile(`(\d{4}[-./]\d{1,2}[-./]\d{1,2}|\d+일차?|\d+주차?)\s*[:：]?\s*`)
)
