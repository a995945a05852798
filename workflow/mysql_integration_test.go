package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs the concurrency properties against MySQL 8 row locks, which sqlite cannot exercise.
// Run (requires Docker): INTEGRATION_TESTS=1 go test ./workflow -run MySQL -v
func TestMySQLConcurrentPaymentsAndConsolidation(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "cari_test")

	db := config.ConnectDatabaseWithRetry()
	require.NoError(t, models.MigrateTable(db))

	ctx := context.Background()
	ledger := NewLedger(db, testLogger(), config.DefaultSettings(), nil, nil)

	customer := models.Customer{CompanyName: "Karadeniz Toptan", Email: "muhasebe@karadeniz.example"}
	require.NoError(t, db.Create(&customer).Error)
	product := models.Product{Name: "Widget", Unit: "pcs"}
	require.NoError(t, db.Create(&product).Error)

	var noteIds []int
	for i := 0; i < 4; i++ {
		note, err := ledger.DeliveryNotes.Create(ctx, models.NewDeliveryNote{
			CustomerId: customer.ID,
			Items:      []models.NewDeliveryNoteItem{item(product.ID, "1", "250")},
		})
		require.NoError(t, err)
		_, err = ledger.DeliveryNotes.Sign(ctx, note.ID, models.SignDeliveryNote{SignatureData: "sig", SignerName: "A"})
		require.NoError(t, err)
		noteIds = append(noteIds, note.ID)
	}

	// overlapping selections: only one consolidation may win each note
	var wg sync.WaitGroup
	consolidateErrs := make([]error, 3)
	for i := range consolidateErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, consolidateErrs[i] = ledger.Invoices.ConsolidateFromDeliveryNotes(ctx, models.NewInvoiceFromDeliveryNotes{
				CustomerId:      customer.ID,
				DeliveryNoteIds: noteIds,
			})
		}(i)
	}
	wg.Wait()
	won := 0
	for _, err := range consolidateErrs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrDeliveryNoteAlreadyInvoiced)
	}
	require.Equal(t, 1, won)

	var invoice models.Invoice
	require.NoError(t, db.Where("customer_id = ?", customer.ID).First(&invoice).Error)
	assertAmount(t, "1000", invoice.TotalAmount)

	payErrs := make([]error, 8)
	for i := range payErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, payErrs[i] = ledger.Payments.Record(ctx, models.NewPayment{
				CustomerId:    customer.ID,
				InvoiceId:     &invoice.ID,
				Amount:        dec("300"),
				PaymentMethod: models.PaymentMethodCash,
			})
		}(i)
	}
	wg.Wait()
	paid := 0
	for _, err := range payErrs {
		if err == nil {
			paid++
			continue
		}
		assert.ErrorIs(t, err, ErrOverpayment)
	}
	assert.Equal(t, 3, paid)

	require.NoError(t, db.First(&invoice, invoice.ID).Error)
	assertAmount(t, "100", invoice.RemainingAmount)
	assert.Equal(t, models.InvoiceStatusPartial, invoice.Status)

	findings, err := RunReconciliationChecks(ctx, db, testLogger())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cari-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=cari_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
