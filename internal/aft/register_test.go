package aft

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// RegistrarTestSuite 机台注册测试套件
type RegistrarTestSuite struct {
	suite.Suite
	ctx       context.Context
	store     *MemoryRegistrationStore
	features  *fakeFeatures
	registrar *Registrar
}

func (suite *RegistrarTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = &MemoryRegistrationStore{}
	suite.features = &fakeFeatures{assetNumber: testAssetNumber, debit: true}

	registrar, err := NewRegistrar(suite.ctx, suite.store, suite.features, zap.NewNop())
	suite.Require().NoError(err)
	suite.registrar = registrar
}

func (suite *RegistrarTestSuite) request(code RegistrationCode) RegistrationRequest {
	return RegistrationRequest{
		Code:        code,
		AssetNumber: testAssetNumber,
		Key:         testKey(),
		POSID:       42,
	}
}

// TestDefaultNotRegistered 首次启动未注册
func (suite *RegistrarTestSuite) TestDefaultNotRegistered() {
	response := suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeRead))
	assert.Equal(suite.T(), RegistrationStatusNotRegistered, response.Status)
	assert.Equal(suite.T(), testAssetNumber, response.AssetNumber)
	assert.False(suite.T(), suite.registrar.IsRegistered())
}

// TestRegister 注册后密钥与POS ID生效
func (suite *RegistrarTestSuite) TestRegister() {
	response := suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeRegister))
	assert.Equal(suite.T(), RegistrationStatusRegistered, response.Status)
	assert.Equal(suite.T(), testKey(), response.Key)
	assert.Equal(suite.T(), uint32(42), response.POSID)

	assert.True(suite.T(), suite.registrar.IsRegistered())
	assert.True(suite.T(), suite.registrar.KeyMatches(testKey()))
	assert.False(suite.T(), suite.registrar.KeyMatches(RegistrationKey{}))
	assert.Equal(suite.T(), uint32(42), suite.registrar.POSID())
	assert.True(suite.T(), suite.registrar.DebitTransfersEnabled())
}

// TestRequestAckTreatedAsRegister 请求操作员确认按注册处理
func (suite *RegistrarTestSuite) TestRequestAckTreatedAsRegister() {
	response := suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeRequestAck))
	assert.Equal(suite.T(), RegistrationStatusRegistered, response.Status)
}

// TestInitializeAndUnregister 初始化与注销清除密钥
func (suite *RegistrarTestSuite) TestInitializeAndUnregister() {
	suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeRegister))

	response := suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeInitialize))
	assert.Equal(suite.T(), RegistrationStatusReady, response.Status)
	assert.True(suite.T(), response.Key.IsZero())

	suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeRegister))
	response = suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeUnregister))
	assert.Equal(suite.T(), RegistrationStatusNotRegistered, response.Status)
	assert.Zero(suite.T(), response.POSID)
}

// TestAssetMismatchIgnored 资产编号不符时不改变状态
func (suite *RegistrarTestSuite) TestAssetMismatchIgnored() {
	request := suite.request(RegistrationCodeRegister)
	request.AssetNumber = 1

	response := suite.registrar.Handle(suite.ctx, request)
	assert.Equal(suite.T(), RegistrationStatusNotRegistered, response.Status)
}

// TestRestore 重启后恢复注册信息
func (suite *RegistrarTestSuite) TestRestore() {
	suite.registrar.Handle(suite.ctx, suite.request(RegistrationCodeRegister))

	restored, err := NewRegistrar(suite.ctx, suite.store, suite.features, zap.NewNop())
	suite.Require().NoError(err)
	assert.True(suite.T(), restored.IsRegistered())
	assert.Equal(suite.T(), testKey(), restored.RegistrationKey())
}

// TestSaveFailureKeepsState 持久化失败时保持原状态
func (suite *RegistrarTestSuite) TestSaveFailureKeepsState() {
	registrar, err := NewRegistrar(suite.ctx, failingRegistrationStore{}, suite.features, zap.NewNop())
	suite.Require().NoError(err)

	response := registrar.Handle(suite.ctx, suite.request(RegistrationCodeRegister))
	assert.Equal(suite.T(), RegistrationStatusNotRegistered, response.Status)
}

func TestRegistrarTestSuite(t *testing.T) {
	suite.Run(t, new(RegistrarTestSuite))
}

type failingRegistrationStore struct{}

func (failingRegistrationStore) Load(ctx context.Context) (*RegistrationState, error) {
	return nil, nil
}

func (failingRegistrationStore) Save(ctx context.Context, state RegistrationState) error {
	return errors.New("read-only")
}

// TestReceiptBook 收据数据合并、清除与校验
func TestReceiptBook(t *testing.T) {
	ctx := context.Background()
	store := &MemoryReceiptDataStore{}
	book, err := NewReceiptBook(ctx, store, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, book.Set(ctx, map[ReceiptField]string{
		ReceiptFieldLocation:     "Main Floor",
		ReceiptFieldInHouseLine1: "Thank you",
	}))
	require.NoError(t, book.Set(ctx, map[ReceiptField]string{
		ReceiptFieldAddress1:     "1 Casino Way",
		ReceiptFieldInHouseLine1: "",
	}))

	assert.Equal(t, "Main Floor", book.Get(ReceiptFieldLocation))
	assert.Equal(t, "1 Casino Way", book.Get(ReceiptFieldAddress1))
	assert.Empty(t, book.Get(ReceiptFieldInHouseLine1))
	assert.Len(t, book.Fields(), 2)

	assert.Error(t, book.Set(ctx, map[ReceiptField]string{0x7E: "x"}))
	assert.Error(t, book.Set(ctx, map[ReceiptField]string{ReceiptFieldDebitLine1: "this line is definitely too long"}))
	assert.Len(t, book.Fields(), 2)

	restored, err := NewReceiptBook(ctx, store, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, book.Fields(), restored.Fields())
}

func TestRegistrationKey_Text(t *testing.T) {
	data, err := json.Marshal(RegistrationState{Status: RegistrationStatusRegistered, Key: testKey(), POSID: 9})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"0102030405060708090a0b0c0d0e0f1011121314"`)

	var state RegistrationState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, testKey(), state.Key)

	var key RegistrationKey
	assert.Error(t, key.UnmarshalText([]byte("zz")))
	assert.Error(t, key.UnmarshalText([]byte("0102")))
	require.NoError(t, key.UnmarshalText(nil))
	assert.True(t, key.IsZero())
}
