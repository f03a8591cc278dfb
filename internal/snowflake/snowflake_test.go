package snowflake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionString(t *testing.T) {
	connStr := "scheme=https;ACCOUNT=HZDABLB-WLB56571;HOST=HZDABLB-WLB56571.azure.snowflakecomputing.com;port=443;USER=testuser;PASSWORD=testpass;DB=CAMPAIGNS.PUBLIC;WAREHOUSE=WH_XS;"

	cfg := ParseConnectionString(connStr)

	assert.Equal(t, "HZDABLB-WLB56571", cfg.Account)
	assert.Equal(t, "testuser", cfg.User)
	assert.Equal(t, "testpass", cfg.Password)
	assert.Equal(t, "CAMPAIGNS", cfg.Database)
	assert.Equal(t, "PUBLIC", cfg.Schema)
	assert.Equal(t, "WH_XS", cfg.Warehouse)
}

func TestParseConnectionStringNoTrailingSemicolon(t *testing.T) {
	cfg := ParseConnectionString("ACCOUNT=test;USER=user;PASSWORD=pa=ss;DB=mydb")

	assert.Equal(t, "test", cfg.Account)
	assert.Equal(t, "pa=ss", cfg.Password)
	assert.Equal(t, "mydb", cfg.Database)
	assert.Empty(t, cfg.Schema)
}

func TestRowAccessors(t *testing.T) {
	ts := time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC)
	row := Row{
		"NAME":     []byte("Maria"),
		"COUNT":    "7",
		"SPENT":    "123.50",
		"WHEN":     ts,
		"NOTHING":  nil,
		"INTEGRAL": int64(12),
	}

	assert.Equal(t, "Maria", row.String("name"))
	assert.Equal(t, int64(7), row.Int("count"))
	assert.Equal(t, 123.5, row.Float("spent"))
	assert.Equal(t, "2024-03-15T03:00:00Z", row.String("when"))
	assert.Equal(t, "", row.String("nothing"))
	assert.Equal(t, "", row.String("missing"))
	assert.Equal(t, int64(12), row.Int("integral"))
	assert.Equal(t, 12.0, row.Float("integral"))
	assert.Equal(t, int64(0), row.Int("name"))
}

func TestQueryReturnsRowsKeyedByUpperColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT customer_id").
		WithArgs("2024-03-15").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "Phone"}).
			AddRow("c-1", "11987654321").
			AddRow("c-2", nil))

	client := NewFromDB(db, time.Second)
	rows, err := client.Query(context.Background(), "SELECT customer_id, phone FROM t WHERE d = ?", "2024-03-15")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c-1", rows[0].String("CUSTOMER_ID"))
	assert.Equal(t, "11987654321", rows[0].String("phone"))
	assert.Nil(t, rows[1].Value("PHONE"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFailureIsClassified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Object 'X_RAW.PUBLIC.CLIENTES' does not exist"))

	client := NewFromDB(db, time.Second)
	_, err = client.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryFailure)
	assert.NotErrorIs(t, err, domain.ErrQueryTimeout)
}

func TestQueryTimeoutIsClassified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	client := NewFromDB(db, 20*time.Millisecond)
	_, err = client.Query(context.Background(), "SELECT x")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryTimeout)
	assert.ErrorIs(t, err, domain.ErrQueryFailure)
}

func TestExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO").
		WithArgs("u-1", "birthday").
		WillReturnResult(sqlmock.NewResult(0, 1))

	client := NewFromDB(db, 0)
	require.NoError(t, client.Exec(context.Background(), "INSERT INTO h VALUES (?, ?)", "u-1", "birthday"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewClientRequiresAccount(t *testing.T) {
	_, err := NewClient(Config{User: "u", Password: "p"})
	assert.Error(t, err)
}
