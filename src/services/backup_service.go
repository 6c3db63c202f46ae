package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/store"
	"github.com/shopspring/decimal"
)

// backupService produces and consumes complete store snapshots. Every
// import path goes through Normalize so partial or legacy backups never
// introduce dangling references.
type backupService struct {
	store *store.Store
}

func NewBackupService(st *store.Store) BackupService {
	return &backupService{store: st}
}

// Export gathers every collection into one self-describing document.
// Empty collections export as empty arrays, never as an error.
func (s *backupService) Export(ctx context.Context) (models.BackupData, error) {
	data := models.BackupData{
		Transactions: s.store.Transactions(ctx),
		Accounts:     s.store.Accounts(ctx),
		Categories:   s.store.Categories(ctx),
		Ledgers:      s.store.Ledgers(ctx),
		User:         s.store.Profile(ctx),
		Settings:     s.store.StorageConfig(ctx),
		ExportDate:   time.Now().UTC().Format(time.RFC3339),
		Version:      models.SchemaVersion,
	}
	return data, nil
}

func (s *backupService) ImportOverwrite(ctx context.Context, raw []byte) (models.BackupData, error) {
	data, err := s.parse(raw)
	if err != nil {
		return models.BackupData{}, err
	}
	normalized := Normalize(data)

	if err := s.store.ReplaceLedgers(ctx, normalized.Ledgers); err != nil {
		return models.BackupData{}, err
	}
	if err := s.store.ReplaceAccounts(ctx, normalized.Accounts); err != nil {
		return models.BackupData{}, err
	}
	if err := s.store.ReplaceCategories(ctx, normalized.Categories); err != nil {
		return models.BackupData{}, err
	}
	if err := s.store.ReplaceTransactions(ctx, normalized.Transactions); err != nil {
		return models.BackupData{}, err
	}
	if err := s.writeSingletons(ctx, normalized); err != nil {
		return models.BackupData{}, err
	}
	logger.L.Info("Backup imported with overwrite",
		"transactions", len(normalized.Transactions), "accounts", len(normalized.Accounts))
	return s.Export(ctx)
}

func (s *backupService) ImportMerge(ctx context.Context, raw []byte) (models.BackupData, error) {
	data, err := s.parse(raw)
	if err != nil {
		return models.BackupData{}, err
	}
	normalized := Normalize(data)

	if err := s.store.MergeLedgers(ctx, normalized.Ledgers); err != nil {
		return models.BackupData{}, err
	}
	if err := s.store.MergeAccounts(ctx, normalized.Accounts); err != nil {
		return models.BackupData{}, err
	}
	if err := s.store.MergeCategories(ctx, normalized.Categories); err != nil {
		return models.BackupData{}, err
	}
	if err := s.store.MergeTransactions(ctx, normalized.Transactions); err != nil {
		return models.BackupData{}, err
	}
	if err := s.writeSingletons(ctx, normalized); err != nil {
		return models.BackupData{}, err
	}
	logger.L.Info("Backup imported with merge",
		"transactions", len(normalized.Transactions), "accounts", len(normalized.Accounts))

	// Merge combines incoming records with pre-existing ones, so the
	// published result is re-read from the store, not the input.
	return s.Export(ctx)
}

// parse rejects malformed payloads before anything touches the store.
func (s *backupService) parse(raw []byte) (models.BackupData, error) {
	var data models.BackupData
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("%w: %v", ErrBackupMalformed, err)
	}
	if data.Transactions == nil && data.Accounts == nil && data.Categories == nil &&
		data.Ledgers == nil && data.User == nil {
		return data, fmt.Errorf("%w: no recognizable collections", ErrBackupMalformed)
	}
	return data, nil
}

// writeSingletons overwrites the user/settings singletons, last import
// wins, never merged field by field.
func (s *backupService) writeSingletons(ctx context.Context, data models.BackupData) error {
	if data.User != nil {
		if err := s.store.SaveProfile(ctx, *data.User); err != nil {
			return err
		}
	}
	if data.Settings != nil {
		if err := s.store.SaveStorageConfig(ctx, *data.Settings); err != nil {
			return err
		}
	}
	return nil
}

// Normalize turns an arbitrary, possibly partial backup into a fully
// populated, foreign-key-consistent record set. Mandatory on every
// import path.
func Normalize(data models.BackupData) models.BackupData {
	if len(data.Ledgers) == 0 {
		data.Ledgers = models.DefaultLedgers()
	}
	primary := data.Ledgers[0]

	if len(data.Accounts) == 0 {
		data.Accounts = []models.Account{{
			ID:       "acc-default",
			LedgerID: primary.ID,
			Name:     "默认账户",
			Type:     models.AccountChecking,
			Balance:  decimal.Zero,
			Currency: primary.Currency,
			Icon:     "landmark",
		}}
	}
	for i := range data.Accounts {
		if data.Accounts[i].LedgerID == "" {
			data.Accounts[i].LedgerID = primary.ID
		}
		if data.Accounts[i].Currency == "" {
			data.Accounts[i].Currency = primary.Currency
		}
	}

	if len(data.Categories) == 0 {
		data.Categories = models.DefaultCategories()
	}

	firstAccount := data.Accounts[0]
	firstCategory := data.Categories[0]
	for i := range data.Transactions {
		tx := &data.Transactions[i]
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		if tx.LedgerID == "" {
			tx.LedgerID = primary.ID
		}
		if tx.AccountID == "" {
			tx.AccountID = firstAccount.ID
		}
		if tx.CategoryID == "" {
			tx.CategoryID = firstCategory.ID
		}
		if tx.Currency == "" {
			tx.Currency = primary.Currency
		}
		if tx.Mood == "" {
			tx.Mood = models.MoodNeutral
		}
		fillCurrencySnapshot(tx, primary.Currency)
	}

	if data.User == nil {
		user := models.DefaultUser()
		data.User = &user
	}
	if data.Version == 0 {
		data.Version = models.SchemaVersion
	}
	return data
}
