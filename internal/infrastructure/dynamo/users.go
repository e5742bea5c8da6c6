package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sms/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
//
// Username and phone uniqueness is enforced with guard items sharing the
// table: the user row and its guards are written in one TransactWriteItems,
// so a concurrent registration for the same username or phone cancels the
// transaction and surfaces as domain.ErrConflict. Guard items carry no
// username/phone attribute and therefore never appear in the sparse GSIs.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func usernameGuard(username string) string { return "username#" + username }
func phoneGuard(phone string) string       { return "phone#" + phone }

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, "username-index", "username", username)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.queryGSI(ctx, "phone-index", "phone", phone)
}

// GetByIdentifier resolves a user by username first, then by phone.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if u, err := r.GetByUsername(ctx, identifier); err == nil {
		return u, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return r.GetByPhone(ctx, identifier)
}

// Create inserts the user row plus its username and phone guard items in a
// single transaction. A cancelled transaction means another row already owns
// one of the guards and is reported as domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			r.putGuard(usernameGuard(u.Username), u.UserID),
			r.putGuard(phoneGuard(u.Phone), u.UserID),
		},
	})
	return r.mapTxnErr(err)
}

// Reactivate re-enables an inactive user row with a new username and
// password, stamping the phone verification time. The username guard is
// re-pointed in the same transaction; oldUsername's guard is released when
// the name changes.
func (r *UserRepo) Reactivate(ctx context.Context, userID, oldUsername, username, passwordHash string, phoneVerifiedAt time.Time) error {
	now := time.Now().UTC()
	items := []types.TransactWriteItem{
		{Update: &types.Update{
			TableName: aws.String(r.tableName),
			Key:       strKey("user_id", userID),
			UpdateExpression: aws.String(
				"SET username = :un, password_hash = :ph, is_active = :act, phone_verified_at = :pv, updated_at = :upd",
			),
			ConditionExpression: aws.String("attribute_exists(user_id)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":un":  &types.AttributeValueMemberS{Value: username},
				":ph":  &types.AttributeValueMemberS{Value: passwordHash},
				":act": &types.AttributeValueMemberBOOL{Value: true},
				":pv":  &types.AttributeValueMemberS{Value: phoneVerifiedAt.Format(time.RFC3339Nano)},
				":upd": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			},
		}},
	}
	if oldUsername != username {
		items = append(items,
			types.TransactWriteItem{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey("user_id", usernameGuard(oldUsername)),
			}},
			r.putGuardOwnedBy(usernameGuard(username), userID),
		)
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return r.mapTxnErr(err)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.update(ctx, userID, map[string]interface{}{"password_hash": passwordHash})
}

func (r *UserRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return r.update(ctx, userID, map[string]interface{}{"is_active": active})
}

func (r *UserRepo) update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user by %s: %w", attr, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) putGuard(guardKey, ownerID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"user_id":  &types.AttributeValueMemberS{Value: guardKey},
			"owner_id": &types.AttributeValueMemberS{Value: ownerID},
		},
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}}
}

// putGuardOwnedBy tolerates a pre-existing guard as long as the same user owns it.
func (r *UserRepo) putGuardOwnedBy(guardKey, ownerID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"user_id":  &types.AttributeValueMemberS{Value: guardKey},
			"owner_id": &types.AttributeValueMemberS{Value: ownerID},
		},
		ConditionExpression: aws.String("attribute_not_exists(user_id) OR owner_id = :own"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":own": &types.AttributeValueMemberS{Value: ownerID},
		},
	}}
}

func (r *UserRepo) mapTxnErr(err error) error {
	if err == nil {
		return nil
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return fmt.Errorf("uniqueness guard rejected write: %w", domain.ErrConflict)
	}
	return err
}
