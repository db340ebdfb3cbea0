package workflow

// Built-in template IDs.
const (
	TemplateIntake           = "new-patient-intake"
	TemplateChemoCycleStart  = "chemo-cycle-start"
	TemplateTumorBoardPrep   = "tumor-board-prep"
	TemplateMolecularTesting = "molecular-testing-review"
)

// DefaultTemplates returns the built-in templates. A rule file may replace
// any of them by ID or add new ones.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:          TemplateIntake,
			Name:        "New patient intake",
			Description: "Registration through first oncology consult",
			Steps: []StepTemplate{
				{ID: "records", Name: "Collect outside records", Role: "coordinator", Checklist: []ChecklistItem{
					{ID: "pathology", Text: "Pathology report received", Required: true},
					{ID: "imaging", Text: "Imaging reports received", Required: true},
					{ID: "referral", Text: "Referral letter on file"},
				}},
				{ID: "history", Name: "Nursing history and medication reconciliation", Role: "nurse", Checklist: []ChecklistItem{
					{ID: "med_rec", Text: "Medication list reconciled", Required: true},
					{ID: "allergies", Text: "Allergies verified", Required: true},
				}},
				{ID: "consult", Name: "Oncology consult", Role: "oncologist", Checklist: []ChecklistItem{
					{ID: "staging", Text: "Stage documented", Required: true},
					{ID: "plan", Text: "Initial plan discussed with patient", Required: true},
				}},
			},
		},
		{
			ID:          TemplateChemoCycleStart,
			Name:        "Chemotherapy cycle start",
			Description: "Pre-treatment checks before a new cycle",
			Steps: []StepTemplate{
				{ID: "labs", Name: "Pre-treatment labs", Role: "nurse", Checklist: []ChecklistItem{
					{ID: "cbc", Text: "CBC with differential resulted", Required: true},
					{ID: "cmp", Text: "Comprehensive metabolic panel resulted", Required: true},
				}},
				{ID: "dose_check", Name: "Dose guidance review", Role: "pharmacist", Checklist: []ChecklistItem{
					{ID: "thresholds", Text: "Lab thresholds reviewed", Required: true},
					{ID: "bsa", Text: "BSA recalculated with current weight", Required: true},
				}},
				{ID: "consent", Name: "Consent and education", Role: "nurse", Checklist: []ChecklistItem{
					{ID: "consent_signed", Text: "Consent signed", Required: true},
					{ID: "education", Text: "Side effect education provided"},
				}},
				{ID: "orders", Name: "Sign treatment orders", Role: "oncologist", Checklist: []ChecklistItem{
					{ID: "signed", Text: "Orders signed", Required: true},
				}},
			},
		},
		{
			ID:          TemplateTumorBoardPrep,
			Name:        "Tumor board preparation",
			Description: "Prepare a case for multidisciplinary review",
			Steps: []StepTemplate{
				{ID: "summary", Name: "Case summary", Role: "oncologist", Checklist: []ChecklistItem{
					{ID: "history", Text: "Clinical history summarized", Required: true},
					{ID: "question", Text: "Clinical question stated", Required: true},
				}},
				{ID: "imaging_review", Name: "Radiology review", Role: "coordinator", Checklist: []ChecklistItem{
					{ID: "images_loaded", Text: "Images available for presentation", Required: true},
				}},
				{ID: "pathology_review", Name: "Pathology review", Role: "coordinator", Checklist: []ChecklistItem{
					{ID: "slides", Text: "Slides requested"},
				}},
				{ID: "schedule", Name: "Add to meeting agenda", Role: "coordinator", Checklist: []ChecklistItem{
					{ID: "agenda", Text: "Case on agenda", Required: true},
				}},
			},
		},
		{
			ID:          TemplateMolecularTesting,
			Name:        "Molecular testing review",
			Description: "From NGS order to documented actionability",
			Steps: []StepTemplate{
				{ID: "order", Name: "Order NGS panel", Role: "oncologist", Checklist: []ChecklistItem{
					{ID: "specimen", Text: "Specimen adequacy confirmed", Required: true},
				}},
				{ID: "result", Name: "Report received", Role: "coordinator", Checklist: []ChecklistItem{
					{ID: "uploaded", Text: "Report attached to chart", Required: true},
				}},
				{ID: "interpret", Name: "Interpret variants", Role: "oncologist", Checklist: []ChecklistItem{
					{ID: "actionable", Text: "Actionable variants reviewed", Required: true},
					{ID: "trials", Text: "Trial eligibility screened"},
				}},
				{ID: "discuss", Name: "Discuss results with patient", Role: "oncologist", Checklist: []ChecklistItem{
					{ID: "documented", Text: "Discussion documented", Required: true},
				}},
			},
		},
	}
}
