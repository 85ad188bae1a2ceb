package model

// NotSpecified is the sentinel stored for any field that was not extracted.
const NotSpecified = "Not specified"

// Field identifies one column of the dataset Field Schema.
type Field int

// Schema fields, in catalog column order.
const (
	FieldDatasetName Field = iota
	FieldDOI
	FieldURL
	FieldYear
	FieldAccessType
	FieldInstitution
	FieldCountry
	FieldModality
	FieldResolution
	FieldSubjectNo
	FieldSliceScanNo
	FieldAgeRange
	FieldAcquisitionProtocol
	FieldFormat
	FieldSegmentationMask
	FieldPreprocessing
	FieldDisease
	FieldHealthyControl
	FieldStagingInformation
	FieldClinicalDataScore
	FieldHistopathology
	FieldLabData

	numFields
)

// NumFields is the number of fields in the schema.
const NumFields = int(numFields)

// FieldSpec pairs a field key with the description sent to the extractor.
type FieldSpec struct {
	Key         string
	Description string
}

var schema = [numFields]FieldSpec{
	FieldDatasetName:         {"dataset_name", "The official name of the dataset."},
	FieldDOI:                 {"doi", "The Digital Object Identifier (DOI) if available."},
	FieldURL:                 {"url", "Link to access the dataset (if provided)."},
	FieldYear:                {"year", "The year the dataset was published."},
	FieldAccessType:          {"access_type", "Whether the dataset is open-access, restricted, etc."},
	FieldInstitution:         {"institution", "The university, research lab, or company that gathered the dataset."},
	FieldCountry:             {"country", "The country of the institution."},
	FieldModality:            {"modality", "The imaging type (e.g., MRI, CT, X-ray)."},
	FieldResolution:          {"resolution", "The imaging resolution (e.g., voxel size)."},
	FieldSubjectNo:           {"subject_no", "The number of subjects."},
	FieldSliceScanNo:         {"slice_scan_no", "The number of image slices or scans available."},
	FieldAgeRange:            {"age_range", "The age range of the subjects."},
	FieldAcquisitionProtocol: {"acquisition_protocol", "Details of how images were acquired."},
	FieldFormat:              {"format", "The file format (e.g., DICOM, NIfTI, MHA, PNG, JPG, etc.)."},
	FieldSegmentationMask:    {"segmentation_mask", "Whether segmentation masks are included (Yes/No) and how they were created (manual/automatic)."},
	FieldPreprocessing:       {"preprocessing", "Preprocessing steps applied to the dataset."},
	FieldDisease:             {"disease", "The main disease(s) studied in the dataset."},
	FieldHealthyControl:      {"healthy_control", "Whether healthy controls are included (Yes/No)."},
	FieldStagingInformation:  {"staging_information", "Disease staging details if available."},
	FieldClinicalDataScore:   {"clinical_data_score", "Whether clinical data or scores are included (if yes, specify what)."},
	FieldHistopathology:      {"histopathology", "Whether histopathology data is included (Yes/No)."},
	FieldLabData:             {"lab_data", "Whether lab data (e.g., blood tests) is included (Yes/No)."},
}

var byKey = func() map[string]Field {
	m := make(map[string]Field, numFields)
	for i, s := range schema {
		m[s.Key] = Field(i)
	}
	return m
}()

// Fields returns every schema field in order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// Schema returns the ordered field specs.
func Schema() []FieldSpec {
	out := make([]FieldSpec, numFields)
	copy(out, schema[:])
	return out
}

// Key returns the snake_case key for f, or "" for an out-of-range field.
func (f Field) Key() string {
	if !f.Valid() {
		return ""
	}
	return schema[f].Key
}

// Description returns the extractor instruction for f.
func (f Field) Description() string {
	if !f.Valid() {
		return ""
	}
	return schema[f].Description
}

// Valid reports whether f is a schema field.
func (f Field) Valid() bool {
	return f >= 0 && f < numFields
}

func (f Field) String() string { return f.Key() }

// FieldByKey looks up a field by its key.
func FieldByKey(key string) (Field, bool) {
	f, ok := byKey[key]
	return f, ok
}

// FieldKeys returns the schema keys in order.
func FieldKeys() []string {
	keys := make([]string, numFields)
	for i, s := range schema {
		keys[i] = s.Key
	}
	return keys
}
