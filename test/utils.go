package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"closetapi/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const defaultJWTSecret = "closet-test-secret"

// JWTSecret is the signing key shared by test servers and test tokens.
func JWTSecret() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	return defaultJWTSecret
}

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(JWTSecret()))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func UserPk(user *models.UserAccount) string {
	return fmt.Sprintf("%d", user.ID)
}

func FakeUser(db *gorm.DB, name string, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	home := "Seoul"
	user := &models.UserAccount{
		Name:         name,
		Email:        email,
		GoogleID:     "12232",
		Status:       "FINISHED_AUTH",
		AvatarURL:    "pictureurl",
		HomeLocation: &home,
	}
	db.Create(&user)
	return user
}

func FakeClothing(db *gorm.DB, ownerID uint, category models.Category, name string) *models.Clothing {
	image := fmt.Sprintf("clothes/%d/%s.jpg", ownerID, strings.ReplaceAll(strings.ToLower(name), " ", "-"))
	item := &models.Clothing{
		Name:        name,
		OwnerID:     ownerID,
		Category:    category,
		Colors:      models.StringList{"black"},
		StyleMoods:  models.StringList{string(models.StyleCasual)},
		TPOs:        models.StringList{string(models.TPODaily)},
		Seasons:     models.StringList{string(models.SeasonSpring)},
		ImageURL:    &image,
		IndexStatus: models.IndexReady,
	}
	db.Create(&item)
	return item
}

func NewRefString(data string) *string {
	return &data
}

func UintPointer(i uint) *uint {
	return &i
}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	if awsService.MockUrl != "" {
		return awsService.MockUrl, nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/read/%s", fileKey), nil
}

// URLCacheMock presigns synchronously so tests can compare URLs directly.
type URLCacheMock struct{}

func (URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/read/%s", objectKey), nil
}

// EnqueuerMock records tasks instead of talking to redis.
type EnqueuerMock struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	Err   error
}

func (m *EnqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Tasks = append(m.Tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(m.Tasks)), Type: task.Type()}, nil
}

// TypesEnqueued lists the task types in enqueue order.
func (m *EnqueuerMock) TypesEnqueued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.Tasks))
	for i, task := range m.Tasks {
		types[i] = task.Type()
	}
	return types
}

// Payloads decodes the payload of every task of the given type.
func (m *EnqueuerMock) Payloads(taskType string, decode func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.Tasks {
		if task.Type() == taskType {
			decode(task.Payload())
		}
	}
}

// EmbedderMock returns a fixed vector for every text and remembers the texts.
type EmbedderMock struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	Texts  []string
}

func (m *EmbedderMock) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.EmbedDocument(ctx, text)
}

func (m *EmbedderMock) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

// VectorIndexMock keeps upserted vectors in memory.
type VectorIndexMock struct {
	mu      sync.Mutex
	Vectors map[uint][]float32
	Err     error
}

func (m *VectorIndexMock) Upsert(ctx context.Context, item models.Clothing, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.Vectors == nil {
		m.Vectors = map[uint][]float32{}
	}
	m.Vectors[item.ID] = vector
	return nil
}

func (m *VectorIndexMock) Remove(ctx context.Context, itemID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Vectors, itemID)
	return nil
}
