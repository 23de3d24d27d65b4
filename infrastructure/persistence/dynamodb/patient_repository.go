// Package dynamodb is the ports.PatientStore backed by a single DynamoDB table.
//
// Layout:
//
//	PK = PATIENT#<id>      SK = PROFILE    one item per patient
//	PK = COUNTER#PATIENT   SK = SEQ        atomic id sequence (ADD Seq 1)
//
// The counter only ever grows, so deleted ids are never handed out again.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	entityType = "PATIENT"
	profileSK  = "PROFILE"
	counterPK  = "COUNTER#PATIENT"
	counterSK  = "SEQ"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// patientItem is the stored shape of a patient
type patientItem struct {
	PK               string   `dynamodbav:"PK"`
	SK               string   `dynamodbav:"SK"`
	EntityType       string   `dynamodbav:"EntityType"`
	ID               int64    `dynamodbav:"ID"`
	Name             string   `dynamodbav:"Name"`
	Age              int      `dynamodbav:"Age"`
	Gender           string   `dynamodbav:"Gender"`
	HeartRate        *float64 `dynamodbav:"HeartRate,omitempty"`
	OxygenSaturation *float64 `dynamodbav:"OxygenSaturation,omitempty"`
	Temperature      *float64 `dynamodbav:"Temperature,omitempty"`
	CreatedAt        string   `dynamodbav:"CreatedAt"`
	UpdatedAt        string   `dynamodbav:"UpdatedAt"`
}

// PatientRepository implements ports.PatientStore on DynamoDB
type PatientRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewPatientRepository creates a new DynamoDB patient repository
func NewPatientRepository(client DynamoDBAPI, tableName string, logger *zap.Logger) *PatientRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// Insert allocates the next id from the counter item, then writes the profile
func (r *PatientRepository) Insert(ctx context.Context, fields patient.Fields) (patient.Patient, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return patient.Patient{}, err
	}

	p := patient.New(id, fields)
	stamp := r.now().UTC().Format(time.RFC3339Nano)
	item, err := attributevalue.MarshalMap(toItem(p, stamp))
	if err != nil {
		return patient.Patient{}, apperrors.NewInternal("failed to marshal patient", err)
	}

	// Create case - ensure doesn't exist
	cond := expression.Name("PK").AttributeNotExists()
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return patient.Patient{}, apperrors.NewInternal("failed to build expression", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return patient.Patient{}, r.storeError("put patient", err)
	}

	r.logger.Debug("Patient saved", zap.Int64("patientID", id))
	return p, nil
}

// Update applies the patch with a single conditional UpdateItem
func (r *PatientRepository) Update(ctx context.Context, id int64, patch patient.Patch) (patient.Patient, error) {
	update := expression.Set(expression.Name("UpdatedAt"), expression.Value(r.now().UTC().Format(time.RFC3339Nano)))
	if patch.Name != nil {
		update = update.Set(expression.Name("Name"), expression.Value(strings.TrimSpace(*patch.Name)))
	}
	if patch.Age != nil {
		update = update.Set(expression.Name("Age"), expression.Value(*patch.Age))
	}
	if patch.Gender != nil {
		update = update.Set(expression.Name("Gender"), expression.Value(strings.TrimSpace(*patch.Gender)))
	}
	update = setVital(update, "HeartRate", patch.HeartRate)
	update = setVital(update, "OxygenSaturation", patch.OxygenSaturation)
	update = setVital(update, "Temperature", patch.Temperature)

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return patient.Patient{}, apperrors.NewInternal("failed to build expression", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       patientKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return patient.Patient{}, apperrors.NewNotFound(fmt.Sprintf("patient %d not found", id))
		}
		return patient.Patient{}, r.storeError("update patient", err)
	}

	p, err := parseItem(out.Attributes)
	if err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to parse updated patient", err)
	}
	return p, nil
}

// Delete removes the profile item, failing with NotFound when it is absent
func (r *PatientRepository) Delete(ctx context.Context, id int64) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return apperrors.NewInternal("failed to build expression", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       patientKey(id),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return apperrors.NewNotFound(fmt.Sprintf("patient %d not found", id))
		}
		return r.storeError("delete patient", err)
	}

	r.logger.Debug("Patient deleted", zap.Int64("patientID", id))
	return nil
}

// ListAll scans every patient item and orders them by ID.
// Scan is acceptable here: the roster is small and always read whole.
func (r *PatientRepository) ListAll(ctx context.Context) ([]patient.Patient, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityType))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, apperrors.NewInternal("failed to build expression", err)
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	roster := []patient.Patient{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, r.storeError("scan patients", err)
		}
		for _, item := range page.Items {
			p, err := parseItem(item)
			if err != nil {
				r.logger.Warn("Failed to parse item", zap.Error(err))
				continue
			}
			roster = append(roster, p)
		}
	}

	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	return roster, nil
}

func (r *PatientRepository) nextID(ctx context.Context) (int64, error) {
	update := expression.Add(expression.Name("Seq"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, apperrors.NewInternal("failed to build expression", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: counterSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, r.storeError("allocate patient id", err)
	}

	seq, ok := out.Attributes["Seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, apperrors.NewStore("counter returned no sequence", nil)
	}
	id, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, apperrors.NewStore("counter returned a bad sequence", err)
	}
	return id, nil
}

// storeError maps an SDK failure to a store error carrying the API error code
func (r *PatientRepository) storeError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		r.logger.Warn("DynamoDB request failed",
			zap.String("operation", op),
			zap.String("code", apiErr.ErrorCode()),
			zap.Error(err),
		)
		return apperrors.NewStore(fmt.Sprintf("failed to %s: %s", op, apiErr.ErrorCode()), err)
	}
	return apperrors.NewStore("failed to "+op, err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// setVital adds a SET for a new value or a REMOVE for a cleared one
func setVital(update expression.UpdateBuilder, name string, v patient.OptionalFloat) expression.UpdateBuilder {
	if !v.Set {
		return update
	}
	if v.Value == nil {
		return update.Remove(expression.Name(name))
	}
	return update.Set(expression.Name(name), expression.Value(*v.Value))
}

func patientKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("PATIENT#%d", id)},
		"SK": &types.AttributeValueMemberS{Value: profileSK},
	}
}

func toItem(p patient.Patient, stamp string) patientItem {
	return patientItem{
		PK:               fmt.Sprintf("PATIENT#%d", p.ID),
		SK:               profileSK,
		EntityType:       entityType,
		ID:               p.ID,
		Name:             p.Name,
		Age:              p.Age,
		Gender:           p.Gender,
		HeartRate:        p.HeartRate,
		OxygenSaturation: p.OxygenSaturation,
		Temperature:      p.Temperature,
		CreatedAt:        stamp,
		UpdatedAt:        stamp,
	}
}

func parseItem(item map[string]types.AttributeValue) (patient.Patient, error) {
	var pi patientItem
	if err := attributevalue.UnmarshalMap(item, &pi); err != nil {
		return patient.Patient{}, fmt.Errorf("failed to unmarshal patient item: %w", err)
	}
	return patient.Patient{
		ID:               pi.ID,
		Name:             pi.Name,
		Age:              pi.Age,
		Gender:           pi.Gender,
		HeartRate:        pi.HeartRate,
		OxygenSaturation: pi.OxygenSaturation,
		Temperature:      pi.Temperature,
	}, nil
}
