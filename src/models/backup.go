package models

// SchemaVersion is the backup/store schema version this build writes.
const SchemaVersion = 7

// BackupData is the self-describing snapshot of every collection. It is
// the wire format for both local file export/import and remote sync.
type BackupData struct {
	Transactions []Transaction  `json:"transactions"`
	Accounts     []Account      `json:"accounts"`
	Categories   []Category     `json:"categories"`
	Ledgers      []Ledger       `json:"ledgers"`
	User         *UserProfile   `json:"user"`
	Settings     *StorageConfig `json:"settings"`
	ExportDate   string         `json:"exportDate"`
	Version      int            `json:"version"`
}
