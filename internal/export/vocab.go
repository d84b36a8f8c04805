package export

import "github.com/pressworks/disseminator/internal/model"

// Contributor role descriptions map to the exchange format's controlled
// code list. Unlisted roles fall back to Z99 ("other") rather than failing
// the transform; registries are looser about roles than about identifiers.
var roleCodes = map[string]string{
	"AUTHOR":       "A01",
	"EDITOR":       "B01",
	"TRANSLATOR":   "B06",
	"PHOTOGRAPHER": "A13",
	"ILLUSTRATOR":  "A12",
	"FOREWORD_BY":  "A23",
	"INTRODUCTION": "A24",
	"AFTERWORD_BY": "A19",
	"PREFACE_BY":   "A15",
}

const roleCodeOther = "Z99"

// Product form codes for the exchange format, keyed by publication format.
var productForms = map[model.PublicationFormat]string{
	model.FormatPaperback: "BC",
	model.FormatHardback:  "BB",
	model.FormatPDF:       "EB",
	model.FormatEPUB:      "ED",
	model.FormatHTML:      "EC",
	model.FormatXML:       "EB",
}

const productFormOther = "00"

func roleCode(role string) string {
	if code, ok := roleCodes[role]; ok {
		return code
	}
	return roleCodeOther
}

func productForm(format model.PublicationFormat) string {
	if code, ok := productForms[format]; ok {
		return code
	}
	return productFormOther
}
