// Package protocol defines the JSON envelopes exchanged over a roster session.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"
)

// Client to server message types
const (
	TypeAddPatient    = "addPatient"
	TypeUpdatePatient = "updatePatient"
	TypeDeletePatient = "deletePatient"
	TypeSelectPatient = "selectPatient"
)

// Server to client message types
const (
	TypePatients        = "patients"
	TypeSelectedPatient = "selectedPatient"
	TypeError           = "error"
)

// Envelope is the frame every message travels in.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode parses a raw frame into an envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, apperrors.NewValidation("malformed message")
	}
	if env.Type == "" {
		return Envelope{}, apperrors.NewValidation("message type is required")
	}
	return env, nil
}

// Encode marshals data into an envelope of the given type.
func Encode(msgType, requestID string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.NewInternal("failed to encode "+msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, RequestID: requestID, Data: payload})
}

// EncodeRoster builds a patients message. An empty roster is sent as [].
func EncodeRoster(roster []patient.Patient) ([]byte, error) {
	return EncodeRosterFor("", roster)
}

// EncodeRosterFor builds the patients push that follows a committed mutation.
// It carries that mutation's request id so its sender can tell the push apart
// from pushes caused by other sessions.
func EncodeRosterFor(requestID string, roster []patient.Patient) ([]byte, error) {
	if roster == nil {
		roster = []patient.Patient{}
	}
	return Encode(TypePatients, requestID, roster)
}

// EncodeSelection builds a selectedPatient message.
func EncodeSelection(id int64) ([]byte, error) {
	return EncodeSelectionFor("", id)
}

// EncodeSelectionFor builds a selectedPatient push tagged with the request id
// of the select that caused it.
func EncodeSelectionFor(requestID string, id int64) ([]byte, error) {
	return Encode(TypeSelectedPatient, requestID, id)
}

// EncodeError builds an error message for the sender of requestID.
func EncodeError(requestID string, err error) ([]byte, error) {
	return Encode(TypeError, requestID, ErrorData{
		Code:    string(apperrors.TypeOf(err)),
		Message: apperrors.PublicMessage(err),
	})
}

// DecodeAdd reads an addPatient payload.
func DecodeAdd(data json.RawMessage) (patient.Fields, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return patient.Fields{}, err
	}

	var f patient.Fields
	if f.Name, err = stringField(fields, "name"); err != nil {
		return patient.Fields{}, err
	}
	if f.Gender, err = stringField(fields, "gender"); err != nil {
		return patient.Fields{}, err
	}
	if raw, ok := fields["age"]; ok && !isNull(raw) {
		age, err := looseInt("age", raw)
		if err != nil {
			return patient.Fields{}, err
		}
		f.Age = &age
	}
	if f.HeartRate, err = optionalFloat(fields, "heartRate"); err != nil {
		return patient.Fields{}, err
	}
	if f.OxygenSaturation, err = optionalFloat(fields, "oxygenSaturation"); err != nil {
		return patient.Fields{}, err
	}
	if f.Temperature, err = optionalFloat(fields, "temperature"); err != nil {
		return patient.Fields{}, err
	}
	return f, nil
}

// DecodeUpdate reads an updatePatient payload. Members that are absent are
// left out of the patch; a vital sent as null or "" clears it.
func DecodeUpdate(data json.RawMessage) (int64, patient.Patch, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return 0, patient.Patch{}, err
	}

	rawID, ok := fields["id"]
	if !ok || isNull(rawID) {
		return 0, patient.Patch{}, apperrors.NewValidation("id is required")
	}
	id, err := looseID(rawID)
	if err != nil {
		return 0, patient.Patch{}, err
	}

	var p patient.Patch
	if _, ok := fields["name"]; ok {
		name, err := stringField(fields, "name")
		if err != nil {
			return 0, patient.Patch{}, err
		}
		p.Name = &name
	}
	if _, ok := fields["gender"]; ok {
		gender, err := stringField(fields, "gender")
		if err != nil {
			return 0, patient.Patch{}, err
		}
		p.Gender = &gender
	}
	if raw, ok := fields["age"]; ok {
		if isNull(raw) {
			return 0, patient.Patch{}, apperrors.NewValidation("age cannot be null")
		}
		age, err := looseInt("age", raw)
		if err != nil {
			return 0, patient.Patch{}, err
		}
		p.Age = &age
	}
	if p.HeartRate, err = patchFloat(fields, "heartRate"); err != nil {
		return 0, patient.Patch{}, err
	}
	if p.OxygenSaturation, err = patchFloat(fields, "oxygenSaturation"); err != nil {
		return 0, patient.Patch{}, err
	}
	if p.Temperature, err = patchFloat(fields, "temperature"); err != nil {
		return 0, patient.Patch{}, err
	}
	return id, p, nil
}

// DecodeID reads a deletePatient or selectPatient payload: a bare id, a
// numeric string or an object with an id member.
func DecodeID(data json.RawMessage) (int64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return 0, apperrors.NewValidation("id is required")
	}
	if data[0] == '{' {
		fields, err := decodeObject(data)
		if err != nil {
			return 0, err
		}
		raw, ok := fields["id"]
		if !ok || isNull(raw) {
			return 0, apperrors.NewValidation("id is required")
		}
		return looseID(raw)
	}
	return looseID(data)
}

// AddPayload is the client-side encoding of an add mutation.
func AddPayload(f patient.Fields) map[string]interface{} {
	out := map[string]interface{}{
		"name":   f.Name,
		"gender": f.Gender,
	}
	if f.Age != nil {
		out["age"] = *f.Age
	}
	if f.HeartRate != nil {
		out["heartRate"] = *f.HeartRate
	}
	if f.OxygenSaturation != nil {
		out["oxygenSaturation"] = *f.OxygenSaturation
	}
	if f.Temperature != nil {
		out["temperature"] = *f.Temperature
	}
	return out
}

// UpdatePayload is the client-side encoding of an update mutation. Cleared
// vitals are sent as explicit nulls.
func UpdatePayload(id int64, p patient.Patch) map[string]interface{} {
	out := map[string]interface{}{"id": id}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Age != nil {
		out["age"] = *p.Age
	}
	if p.Gender != nil {
		out["gender"] = *p.Gender
	}
	putVital(out, "heartRate", p.HeartRate)
	putVital(out, "oxygenSaturation", p.OxygenSaturation)
	putVital(out, "temperature", p.Temperature)
	return out
}

// IDPayload is the client-side encoding of a delete or select.
func IDPayload(id int64) map[string]interface{} {
	return map[string]interface{}{"id": id}
}

func putVital(out map[string]interface{}, key string, v patient.OptionalFloat) {
	if !v.Set {
		return
	}
	if v.Value == nil {
		out[key] = nil
		return
	}
	out[key] = *v.Value
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, apperrors.NewValidation("payload must be an object")
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", apperrors.NewValidation(fmt.Sprintf("%s must be a string", key))
	}
	return s, nil
}

func optionalFloat(fields map[string]json.RawMessage, key string) (*float64, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	return looseFloat(key, raw)
}

func patchFloat(fields map[string]json.RawMessage, key string) (patient.OptionalFloat, error) {
	raw, ok := fields[key]
	if !ok {
		return patient.Keep(), nil
	}
	v, err := looseFloat(key, raw)
	if err != nil {
		return patient.OptionalFloat{}, err
	}
	return patient.OptionalFloat{Set: true, Value: v}, nil
}

func looseID(raw json.RawMessage) (int64, error) {
	n, err := looseNumber("id", raw)
	if err != nil {
		return 0, err
	}
	id, err := n.Int64()
	if err != nil {
		return 0, apperrors.NewValidation("id must be an integer")
	}
	return id, nil
}

func looseInt(key string, raw json.RawMessage) (int, error) {
	n, err := looseNumber(key, raw)
	if err != nil {
		return 0, err
	}
	i, err := n.Int64()
	if err != nil {
		return 0, apperrors.NewValidation(fmt.Sprintf("%s must be a whole number", key))
	}
	return int(i), nil
}

// looseFloat returns nil for null and for the empty string.
func looseFloat(key string, raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s == "" {
		return nil, nil
	}
	n, err := looseNumber(key, raw)
	if err != nil {
		return nil, err
	}
	f, err := n.Float64()
	if err != nil {
		return nil, apperrors.NewValidation(fmt.Sprintf("%s must be a number", key))
	}
	return &f, nil
}

// looseNumber accepts a JSON number or a string holding one.
func looseNumber(key string, raw json.RawMessage) (json.Number, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", apperrors.NewValidation(fmt.Sprintf("%s must be a number", key))
	}

	switch t := v.(type) {
	case json.Number:
		return t, nil
	case string:
		n := json.Number(string(bytes.TrimSpace([]byte(t))))
		if _, err := n.Float64(); err != nil {
			return "", apperrors.NewValidation(fmt.Sprintf("%s must be a number", key))
		}
		return n, nil
	default:
		return "", apperrors.NewValidation(fmt.Sprintf("%s must be a number", key))
	}
}
