package models

// Entity types synchronized with the remote training-records system.
const (
	EntityTypeTrainee    = "trainee"
	EntityTypeProgram    = "program"
	EntityTypeAssessment = "assessment"
	EntityTypeDocument   = "document"
)
