package memo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/zeromicro/go-zero/core/stores/redis/redistest"
)

// StoreSuite checks the behaviour every Store must share.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func (s *StoreSuite) TestMissingKey() {
	_, ok, err := s.store.Get(context.Background(), "apyscope:test:missing")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestSetThenGet() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "apyscope:test:k", []byte{0x92, 0x01, 0x02}, time.Minute))
	payload, ok, err := s.store.Get(ctx, "apyscope:test:k")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]byte{0x92, 0x01, 0x02}, payload)
}

func (s *StoreSuite) TestNonPositiveTTLIsIgnored() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "apyscope:test:zero", []byte("x"), 0))
	_, ok, err := s.store.Get(ctx, "apyscope:test:zero")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestOverwrite() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "apyscope:test:o", []byte("a"), time.Minute))
	s.Require().NoError(s.store.Set(ctx, "apyscope:test:o", []byte("b"), time.Minute))
	payload, ok, err := s.store.Get(ctx, "apyscope:test:o")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]byte("b"), payload)
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store { return NewRedisStore(redistest.CreateRedis(t)) }})
}
