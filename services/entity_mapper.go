package services

import (
	"encoding/json"
	"strings"
	"time"

	"training-management-api/models"
)

// StatusUnknown is the local fallback for remote status values this side does
// not recognise. Minor vocabulary drift in the remote system must not fail a
// sync, so unrecognised values map here instead of erroring.
const StatusUnknown = "unknown"

var traineeStatusTable = map[string]string{
	"active":    "active",
	"inactive":  "inactive",
	"pending":   "pending",
	"suspended": "suspended",
	"archived":  "archived",
}

var programStatusTable = map[string]string{
	"draft":     "draft",
	"active":    "active",
	"ongoing":   "active",
	"completed": "completed",
	"closed":    "archived",
	"archived":  "archived",
	"cancelled": "cancelled",
}

var assessmentStatusTable = map[string]string{
	"scheduled":   "scheduled",
	"in_progress": "in_progress",
	"passed":      "passed",
	"failed":      "failed",
	"absent":      "absent",
	"cancelled":   "cancelled",
}

var documentStatusTable = map[string]string{
	"available":  "available",
	"active":     "available",
	"processing": "processing",
	"archived":   "archived",
	"deleted":    "archived",
}

func translateStatus(table map[string]string, remote string) string {
	if local, ok := table[strings.ToLower(strings.TrimSpace(remote))]; ok {
		return local
	}
	return StatusUnknown
}

// reverseStatus finds a remote vocabulary value for a local status, preferring
// the identity mapping when several remote values collapse to one local
// status. The local unknown status has no remote counterpart and yields "".
func reverseStatus(table map[string]string, local string) string {
	if table[local] == local {
		return local
	}
	for remote, mapped := range table {
		if mapped == local {
			return remote
		}
	}
	return ""
}

type remoteAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type remoteTrainee struct {
	ID        string         `json:"id"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	BirthDate string         `json:"birth_date"`
	Status    string         `json:"status"`
	Address   *remoteAddress `json:"address"`
	UpdatedAt string         `json:"updated_at"`
}

// TraineeFromRemote maps a remote trainee payload to local fields. It is pure
// and fails only on structurally malformed input.
func TraineeFromRemote(raw json.RawMessage) (*models.Trainee, *time.Time, error) {
	var remote remoteTrainee
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeTrainee, Field: "payload", Err: err}
	}
	if strings.TrimSpace(remote.ID) == "" {
		return nil, nil, &MappingError{EntityType: models.EntityTypeTrainee, Field: "id"}
	}

	birthDate, err := parseRemoteDate(remote.BirthDate)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeTrainee, Field: "birth_date", Err: err}
	}
	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeTrainee, Field: "updated_at", Err: err}
	}

	trainee := &models.Trainee{
		ExternalID: optionalString(remote.ID),
		FirstName:  strings.TrimSpace(remote.FirstName),
		LastName:   strings.TrimSpace(remote.LastName),
		Email:      optionalString(remote.Email),
		Phone:      optionalString(remote.Phone),
		BirthDate:  birthDate,
		Status:     translateStatus(traineeStatusTable, remote.Status),
	}
	if remote.Address != nil {
		trainee.AddressLine = optionalString(remote.Address.Line1)
		trainee.City = optionalString(remote.Address.City)
		trainee.PostalCode = optionalString(remote.Address.PostalCode)
		trainee.Country = optionalString(remote.Address.Country)
	}
	return trainee, updatedAt, nil
}

// TraineeToRemote maps a local trainee back to the remote JSON shape.
func TraineeToRemote(t *models.Trainee) map[string]interface{} {
	payload := map[string]interface{}{
		"first_name": t.FirstName,
		"last_name":  t.LastName,
	}
	if t.ExternalID != nil {
		payload["id"] = *t.ExternalID
	}
	if t.Email != nil {
		payload["email"] = *t.Email
	}
	if t.Phone != nil {
		payload["phone"] = *t.Phone
	}
	if t.BirthDate != nil {
		payload["birth_date"] = t.BirthDate.UTC().Format("2006-01-02")
	}
	if remote := reverseStatus(traineeStatusTable, t.Status); remote != "" {
		payload["status"] = remote
	}
	if t.AddressLine != nil || t.City != nil || t.PostalCode != nil || t.Country != nil {
		address := map[string]interface{}{}
		if t.AddressLine != nil {
			address["line1"] = *t.AddressLine
		}
		if t.City != nil {
			address["city"] = *t.City
		}
		if t.PostalCode != nil {
			address["postal_code"] = *t.PostalCode
		}
		if t.Country != nil {
			address["country"] = *t.Country
		}
		payload["address"] = address
	}
	return payload
}

type remoteProgram struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Capacity    *int   `json:"capacity"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at"`
}

// ProgramFromRemote maps a remote training program payload to local fields.
func ProgramFromRemote(raw json.RawMessage) (*models.TrainingProgram, *time.Time, error) {
	var remote remoteProgram
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeProgram, Field: "payload", Err: err}
	}
	if strings.TrimSpace(remote.ID) == "" {
		return nil, nil, &MappingError{EntityType: models.EntityTypeProgram, Field: "id"}
	}

	startDate, err := parseRemoteDate(remote.StartDate)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeProgram, Field: "start_date", Err: err}
	}
	endDate, err := parseRemoteDate(remote.EndDate)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeProgram, Field: "end_date", Err: err}
	}
	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeProgram, Field: "updated_at", Err: err}
	}

	program := &models.TrainingProgram{
		ExternalID:  optionalString(remote.ID),
		Name:        strings.TrimSpace(remote.Name),
		Code:        optionalString(remote.Code),
		Description: optionalString(remote.Description),
		Capacity:    remote.Capacity,
		StartDate:   startDate,
		EndDate:     endDate,
		Status:      translateStatus(programStatusTable, remote.Status),
	}
	return program, updatedAt, nil
}

// ProgramToRemote maps a local training program back to the remote JSON shape.
func ProgramToRemote(p *models.TrainingProgram) map[string]interface{} {
	payload := map[string]interface{}{
		"name": p.Name,
	}
	if p.ExternalID != nil {
		payload["id"] = *p.ExternalID
	}
	if p.Code != nil {
		payload["code"] = *p.Code
	}
	if p.Description != nil {
		payload["description"] = *p.Description
	}
	if p.Capacity != nil {
		payload["capacity"] = *p.Capacity
	}
	if p.StartDate != nil {
		payload["start_date"] = p.StartDate.UTC().Format("2006-01-02")
	}
	if p.EndDate != nil {
		payload["end_date"] = p.EndDate.UTC().Format("2006-01-02")
	}
	if remote := reverseStatus(programStatusTable, p.Status); remote != "" {
		payload["status"] = remote
	}
	return payload
}

type remoteAssessment struct {
	ID         string   `json:"id"`
	TraineeID  string   `json:"trainee_id"`
	ProgramID  string   `json:"program_id"`
	Score      *float64 `json:"score"`
	MaxScore   *float64 `json:"max_score"`
	Status     string   `json:"status"`
	AssessedAt string   `json:"assessed_at"`
	UpdatedAt  string   `json:"updated_at"`
}

// AssessmentFromRemote maps a remote competency assessment payload to local fields.
func AssessmentFromRemote(raw json.RawMessage) (*models.CompetencyAssessment, *time.Time, error) {
	var remote remoteAssessment
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeAssessment, Field: "payload", Err: err}
	}
	if strings.TrimSpace(remote.ID) == "" {
		return nil, nil, &MappingError{EntityType: models.EntityTypeAssessment, Field: "id"}
	}

	assessedAt, err := parseRemoteTimestamp(remote.AssessedAt)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeAssessment, Field: "assessed_at", Err: err}
	}
	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeAssessment, Field: "updated_at", Err: err}
	}

	assessment := &models.CompetencyAssessment{
		ExternalID:        optionalString(remote.ID),
		TraineeExternalID: optionalString(remote.TraineeID),
		ProgramExternalID: optionalString(remote.ProgramID),
		Score:             remote.Score,
		MaxScore:          remote.MaxScore,
		Status:            translateStatus(assessmentStatusTable, remote.Status),
		AssessedAt:        assessedAt,
	}
	return assessment, updatedAt, nil
}

// AssessmentToRemote maps a local assessment back to the remote JSON shape.
func AssessmentToRemote(a *models.CompetencyAssessment) map[string]interface{} {
	payload := map[string]interface{}{}
	if a.ExternalID != nil {
		payload["id"] = *a.ExternalID
	}
	if a.TraineeExternalID != nil {
		payload["trainee_id"] = *a.TraineeExternalID
	}
	if a.ProgramExternalID != nil {
		payload["program_id"] = *a.ProgramExternalID
	}
	if a.Score != nil {
		payload["score"] = *a.Score
	}
	if a.MaxScore != nil {
		payload["max_score"] = *a.MaxScore
	}
	if a.AssessedAt != nil {
		payload["assessed_at"] = a.AssessedAt.UTC().Format(time.RFC3339)
	}
	if remote := reverseStatus(assessmentStatusTable, a.Status); remote != "" {
		payload["status"] = remote
	}
	return payload
}

type remoteDocument struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	MimeType  string `json:"mime_type"`
	URL       string `json:"url"`
	IssuedOn  string `json:"issued_on"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// DocumentFromRemote maps a remote document payload to local fields.
func DocumentFromRemote(raw json.RawMessage) (*models.TrainingDocument, *time.Time, error) {
	var remote remoteDocument
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeDocument, Field: "payload", Err: err}
	}
	if strings.TrimSpace(remote.ID) == "" {
		return nil, nil, &MappingError{EntityType: models.EntityTypeDocument, Field: "id"}
	}

	issuedOn, err := parseRemoteDate(remote.IssuedOn)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeDocument, Field: "issued_on", Err: err}
	}
	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, nil, &MappingError{EntityType: models.EntityTypeDocument, Field: "updated_at", Err: err}
	}

	document := &models.TrainingDocument{
		ExternalID:      optionalString(remote.ID),
		OwnerExternalID: optionalString(remote.OwnerID),
		Title:           strings.TrimSpace(remote.Title),
		Category:        optionalString(remote.Category),
		MimeType:        optionalString(remote.MimeType),
		RemoteURL:       optionalString(remote.URL),
		IssuedOn:        issuedOn,
		Status:          translateStatus(documentStatusTable, remote.Status),
	}
	return document, updatedAt, nil
}

// DocumentToRemote maps a local document back to the remote JSON shape.
func DocumentToRemote(d *models.TrainingDocument) map[string]interface{} {
	payload := map[string]interface{}{
		"title": d.Title,
	}
	if d.ExternalID != nil {
		payload["id"] = *d.ExternalID
	}
	if d.OwnerExternalID != nil {
		payload["owner_id"] = *d.OwnerExternalID
	}
	if d.Category != nil {
		payload["category"] = *d.Category
	}
	if d.MimeType != nil {
		payload["mime_type"] = *d.MimeType
	}
	if d.RemoteURL != nil {
		payload["url"] = *d.RemoteURL
	}
	if d.IssuedOn != nil {
		payload["issued_on"] = d.IssuedOn.UTC().Format("2006-01-02")
	}
	if remote := reverseStatus(documentStatusTable, d.Status); remote != "" {
		payload["status"] = remote
	}
	return payload
}

// parseRemoteTimestamp normalizes remote date-time strings to UTC. Empty
// values are allowed; non-empty values that match no known layout are
// structural errors.
func parseRemoteTimestamp(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, &time.ParseError{Layout: time.RFC3339, Value: value}
}

// parseRemoteDate normalizes remote date-only strings to midnight UTC.
func parseRemoteDate(value string) (*time.Time, error) {
	t, err := parseRemoteTimestamp(value)
	if err != nil || t == nil {
		return nil, err
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
