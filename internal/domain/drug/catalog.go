package drug

// Catalog is the starter formulary loaded by the seed command.
func Catalog() []Drug {
	return []Drug{
		{
			RxCUI: "1656052", Name: "Osimertinib", GenericName: "osimertinib", BrandNames: []string{"Tagrisso"},
			DrugClass:         "EGFR tyrosine kinase inhibitor",
			Indications:       []string{"EGFR-mutated non-small cell lung cancer"},
			Contraindications: []string{"interstitial lung disease", "QT prolongation"},
			Insights: &Insights{
				MechanismOfAction:    "Irreversible inhibitor of EGFR sensitizing and T790M resistance mutations",
				CommonAdverseEvents:  []string{"diarrhea", "rash", "dry skin", "paronychia"},
				MonitoringParameters: []string{"ECG", "LVEF", "CBC"},
				EfficacyNotes:        "FLAURA: median PFS 18.9 vs 10.2 months against first-generation EGFR TKIs",
				EvidenceLevel:        "1A",
			},
		},
		{
			RxCUI: "1597876", Name: "Pembrolizumab", GenericName: "pembrolizumab", BrandNames: []string{"Keytruda"},
			DrugClass:         "PD-1 inhibitor",
			Indications:       []string{"non-small cell lung cancer", "melanoma", "MSI-high solid tumors"},
			Contraindications: []string{"active autoimmune disease", "organ transplant"},
			Insights: &Insights{
				MechanismOfAction:    "Blocks PD-1 to release T-cell checkpoint inhibition",
				CommonAdverseEvents:  []string{"fatigue", "pruritus", "hypothyroidism", "pneumonitis"},
				MonitoringParameters: []string{"TSH", "LFTs", "creatinine"},
				EvidenceLevel:        "1A",
			},
		},
		{
			RxCUI: "224905", Name: "Capecitabine", GenericName: "capecitabine", BrandNames: []string{"Xeloda"},
			DrugClass:         "antimetabolite",
			Indications:       []string{"colorectal cancer", "breast cancer"},
			Contraindications: []string{"DPD deficiency", "severe renal impairment", "warfarin"},
			BlackBoxWarning:   "Warfarin interaction: altered coagulation parameters and bleeding",
		},
		{
			RxCUI: "40048", Name: "Carboplatin", GenericName: "carboplatin", BrandNames: []string{"Paraplatin"},
			DrugClass:         "platinum alkylating agent",
			Indications:       []string{"ovarian cancer", "non-small cell lung cancer"},
			Contraindications: []string{"platinum allergy", "severe bone marrow suppression"},
			BlackBoxWarning:   "Bone marrow suppression and anaphylactic reactions",
		},
		{
			RxCUI: "1946825", Name: "Abemaciclib", GenericName: "abemaciclib", BrandNames: []string{"Verzenio"},
			DrugClass:         "CDK4/6 inhibitor",
			Indications:       []string{"HR-positive breast cancer"},
			Contraindications: []string{"ketoconazole"},
			Insights: &Insights{
				MechanismOfAction:   "Selective CDK4/6 inhibition causing G1 arrest",
				CommonAdverseEvents: []string{"diarrhea", "neutropenia", "fatigue"},
				EvidenceLevel:       "1A",
			},
		},
		{
			RxCUI: "2168279", Name: "Sotorasib", GenericName: "sotorasib", BrandNames: []string{"Lumakras"},
			DrugClass:         "KRAS G12C inhibitor",
			Indications:       []string{"KRAS G12C-mutated non-small cell lung cancer"},
			Contraindications: []string{"acid-reducing agents"},
		},
	}
}
