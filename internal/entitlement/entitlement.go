// Package entitlement maps subscription tiers to the features and monthly
// allowances they grant. The table is static and has no I/O.
package entitlement

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is one of the three subscription levels.
type Tier string

const (
	TierFree         Tier = "free"
	TierPremium      Tier = "premium"
	TierProfessional Tier = "professional"
)

// Unlimited marks a quota that is never exhausted.
const Unlimited = -1

// ErrUnknownTier is returned by ParseTier for values outside the enum.
var ErrUnknownTier = errors.New("unknown tier")

// Feature names recognised by the resolver.
const (
	FeatureResumeBuilder          = "resume_builder"
	FeatureCompanyResearch        = "company_research"
	FeaturePDFDownload            = "pdf_download"
	FeatureResumeAnalysis         = "resume_analysis"
	FeatureCoverLetter            = "cover_letter"
	FeatureCoverLetterAnalysis    = "cover_letter_analysis"
	FeatureLinkedInOptimization   = "linkedin_optimization"
	FeatureInterviewPractice      = "interview_practice"
	FeatureATSScoring             = "ats_scoring"
	FeatureJobCustomization       = "job_customization"
	FeatureMockInterviewSimulator = "mock_interview_simulator"
	FeatureCareerPathAnalysis     = "career_path_analysis"
	FeatureSalaryBenchmarking     = "salary_benchmarking"
	FeatureSkillsGapAnalysis      = "skills_gap_analysis"
)

// Tiers lists every tier from lowest to highest.
func Tiers() []Tier {
	return []Tier{TierFree, TierPremium, TierProfessional}
}

// ParseTier validates s against the enum. Matching is case-insensitive.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierPremium, TierProfessional:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// Valid reports whether t is one of the enum values.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Rank orders tiers so that a higher tier never grants less.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPremium:
		return 1
	case TierProfessional:
		return 2
	default:
		return -1
	}
}

func (t Tier) String() string { return string(t) }

// Entitlement is everything a tier grants.
type Entitlement struct {
	Tier              Tier           `json:"tier"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	Features          []string       `json:"features"`
	Quotas            map[string]int `json:"quota"`
	MonthlyPriceCents int            `json:"monthly_price_cents"`
}

// HasFeature reports whether the entitlement includes feature.
func (e Entitlement) HasFeature(feature string) bool {
	for _, f := range e.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Limit returns the monthly allowance for feature and whether it is metered.
func (e Entitlement) Limit(feature string) (int, bool) {
	limit, ok := e.Quotas[feature]
	return limit, ok
}

var (
	freeFeatures = []string{
		FeatureResumeBuilder,
		FeatureCompanyResearch,
		FeaturePDFDownload,
	}
	premiumFeatures = append(append([]string{}, freeFeatures...),
		FeatureResumeAnalysis,
		FeatureCoverLetter,
		FeatureCoverLetterAnalysis,
		FeatureLinkedInOptimization,
		FeatureInterviewPractice,
		FeatureATSScoring,
		FeatureJobCustomization,
	)
	professionalFeatures = append(append([]string{}, premiumFeatures...),
		FeatureMockInterviewSimulator,
		FeatureCareerPathAnalysis,
		FeatureSalaryBenchmarking,
		FeatureSkillsGapAnalysis,
	)
)

// Resolve returns the entitlement for t. Unknown tiers resolve to nothing.
func Resolve(t Tier) (Entitlement, bool) {
	switch t {
	case TierFree:
		return Entitlement{
			Tier:        TierFree,
			Name:        "Free",
			Description: "Basic resume builder + Company research",
			Features:    clone(freeFeatures),
			Quotas: map[string]int{
				FeaturePDFDownload: 1,
			},
		}, true
	case TierPremium:
		return Entitlement{
			Tier:        TierPremium,
			Name:        "Premium",
			Description: "AI resume and cover letter analysis, ATS scoring and interview practice",
			Features:    clone(premiumFeatures),
			Quotas: map[string]int{
				FeaturePDFDownload: Unlimited,
				FeatureCoverLetter: Unlimited,
			},
			MonthlyPriceCents: 1900,
		}, true
	case TierProfessional:
		return Entitlement{
			Tier:        TierProfessional,
			Name:        "Professional",
			Description: "Everything in Premium plus mock interviews, career path, salary and skills gap analysis",
			Features:    clone(professionalFeatures),
			Quotas: map[string]int{
				FeaturePDFDownload: Unlimited,
				FeatureCoverLetter: Unlimited,
			},
			MonthlyPriceCents: 3900,
		}, true
	default:
		return Entitlement{}, false
	}
}

// HasAccess reports whether tier t may use feature.
func HasAccess(t Tier, feature string) bool {
	e, ok := Resolve(t)
	return ok && e.HasFeature(feature)
}

// RequiredTier returns the lowest tier granting feature.
func RequiredTier(feature string) (Tier, bool) {
	for _, t := range Tiers() {
		if HasAccess(t, feature) {
			return t, true
		}
	}
	return "", false
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
