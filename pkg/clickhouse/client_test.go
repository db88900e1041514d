package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "finedge",
		User:         "app",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	}
	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/finedge", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "30", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))
	assert.Empty(t, q.Get("read_timeout"))
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "h", Port: 8123, Database: "db", UseHTTP: true})
	assert.Equal(t, "http://h:8123/db", dsn)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}
