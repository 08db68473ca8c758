package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStateIsIdle(t *testing.T) {
	m := NewMemoryManager()
	assert.Equal(t, Idle, m.GetState(42))
	_, ok := m.GetContext(42, "anything")
	assert.False(t, ok)
}

func TestSetStateIdleClearsBag(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, FileUpload)
	m.SetContext(1, "bulk_numbers", []string{"1234567890"})
	m.SetContext(1, "source_file", "numbers.txt")

	m.SetState(1, Idle)

	require.Equal(t, Idle, m.GetState(1))
	_, ok := m.GetContext(1, "bulk_numbers")
	assert.False(t, ok)
	_, ok = m.GetContext(1, "source_file")
	assert.False(t, ok)
}

func TestClearContextKeepsState(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(7, WithdrawProcessing)
	m.SetContext(7, "withdraw_numbers", []string{"1112223334"})

	m.ClearContext(7)

	assert.Equal(t, WithdrawProcessing, m.GetState(7))
	_, ok := m.GetContext(7, "withdraw_numbers")
	assert.False(t, ok)
}

func TestTypedGetters(t *testing.T) {
	m := NewMemoryManager()
	m.SetContext(3, "name", "numbers.txt")
	m.SetContext(3, "numbers", []string{"123"})
	m.SetContext(3, "count", 5)

	s, ok := m.GetContextString(3, "name")
	require.True(t, ok)
	assert.Equal(t, "numbers.txt", s)

	list, ok := m.GetContextStrings(3, "numbers")
	require.True(t, ok)
	assert.Equal(t, []string{"123"}, list)

	_, ok = m.GetContextString(3, "count")
	assert.False(t, ok)
	_, ok = m.GetContextStrings(3, "missing")
	assert.False(t, ok)
}

func TestUsersAreIsolated(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, SessionUpload)
	m.SetContext(1, "k", "v")

	assert.Equal(t, Idle, m.GetState(2))
	_, ok := m.GetContext(2, "k")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	m := NewMemoryManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.SetState(id, ChannelSetup)
			m.SetContext(id, "k", id)
			m.GetState(id)
			m.SetState(id, Idle)
		}(int64(i % 8))
	}
	wg.Wait()
	for id := int64(0); id < 8; id++ {
		assert.Equal(t, Idle, m.GetState(id))
	}
}
