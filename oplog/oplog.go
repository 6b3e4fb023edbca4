// Package oplog holds the operation log: Operation, Version, and Node,
// the append-only record of tracked CUD events and the version batches
// that group them.
package oplog

import (
	"time"

	"gorm.io/gorm"
)

// Command is the CUD event kind recorded on an Operation.
type Command string

const (
	Insert Command = "i"
	Update Command = "u"
	Delete Command = "d"
)

// Operation is one tracked CUD event. Order is the monotonic primary
// key assigned at append; VersionID is nil until the operation is
// folded into a Version by a successful push.
type Operation struct {
	Order         int64   `gorm:"primaryKey;autoIncrement;column:order" json:"order"`
	RowID         int64   `gorm:"column:row_id;not null" json:"row_id"`
	ContentTypeID uint32  `gorm:"column:content_type_id;not null;index" json:"content_type_id"`
	Command       Command `gorm:"column:command;not null;size:1" json:"command"`
	VersionID     *int64  `gorm:"column:version_id;index" json:"version_id"`
}

func (Operation) TableName() string { return "sync_operations" }

// Version is an atomic batch of Operations committed by a successful
// push. NodeID is optional on the client side (nil until the version
// is known to originate from a specific node).
type Version struct {
	VersionID int64     `gorm:"primaryKey;autoIncrement;column:version_id" json:"version_id"`
	NodeID    *string   `gorm:"column:node_id;index" json:"node_id"`
	Created   time.Time `gorm:"column:created;not null" json:"created"`
}

func (Version) TableName() string { return "sync_versions" }

// Node is a client registration record. The secret is shared back to
// the client exactly once, at registration time, and used thereafter
// to sign push messages (see package syncmsg).
type Node struct {
	NodeID         string    `gorm:"primaryKey;column:node_id" json:"node_id"`
	Registered     time.Time `gorm:"column:registered;not null" json:"registered"`
	RegistryUserID string    `gorm:"column:registry_user_id" json:"registry_user_id"`
	Secret         string    `gorm:"column:secret;not null" json:"secret,omitempty"`
	// LastAckedVersionID is the highest version id this node is known to
	// have received via a successful pull (see Store.UpdateNodeAck). Zero
	// means the node has never pulled.
	LastAckedVersionID int64 `gorm:"column:last_acked_version_id;not null;default:0" json:"last_acked_version_id"`
}

func (Node) TableName() string { return "sync_nodes" }

// LogEntry is the optional sync_logs sink for repair/warning records
// (spec.md §7: "Repair of a structurally inconsistent operation log is
// best-effort and logged").
type LogEntry struct {
	ID      int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Created time.Time `gorm:"column:created;not null" json:"created"`
	Source  string    `gorm:"column:source" json:"source"`
	Error   string    `gorm:"column:error" json:"error"`
	NodeID  *string   `gorm:"column:node_id" json:"node_id"`
}

func (LogEntry) TableName() string { return "sync_logs" }

// Models returns every GORM model owned by this package, for
// AutoMigrate callers.
func Models() []interface{} {
	return []interface{}{&Operation{}, &Version{}, &Node{}, &LogEntry{}}
}

// Store persists the operation log against a *gorm.DB. Callers
// typically use it inside an existing transaction (db.Transaction).
type Store struct {
	db *gorm.DB
}

// NewStore wraps a *gorm.DB (or transaction handle) for operation-log access.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append inserts a new unversioned Operation and returns it with its
// assigned Order.
func (s *Store) Append(op *Operation) error {
	return s.db.Create(op).Error
}

// Unversioned returns every Operation with VersionID == nil, ordered by
// Order ascending.
func (s *Store) Unversioned() ([]Operation, error) {
	var ops []Operation
	err := s.db.Where("version_id IS NULL").Order("\"order\" ASC").Find(&ops).Error
	return ops, err
}

// ForContentType returns every Operation (versioned or not) for a given
// content type, ordered by Order ascending.
func (s *Store) ForContentType(contentTypeID uint32) ([]Operation, error) {
	var ops []Operation
	err := s.db.Where("content_type_id = ?", contentTypeID).Order("\"order\" ASC").Find(&ops).Error
	return ops, err
}

// DeleteByOrders removes operations by their Order primary key, used by
// compression to drop superseded rows.
func (s *Store) DeleteByOrders(orders []int64) error {
	if len(orders) == 0 {
		return nil
	}
	return s.db.Where("\"order\" IN ?", orders).Delete(&Operation{}).Error
}

// RelinkRowID rewrites the RowID of the operation at order, used by
// Insert-conflict resolution once the colliding local row has been
// renumbered onto a fresh primary key.
func (s *Store) RelinkRowID(order int64, rowID int64) error {
	return s.db.Model(&Operation{}).Where("\"order\" = ?", order).Update("row_id", rowID).Error
}

// UpdateCommand rewrites the Command of the operation at order, used by
// compression when a group reduces to a synthetic operation (e.g. a
// delete-then-insert pair collapsing to an update).
func (s *Store) UpdateCommand(order int64, command Command) error {
	return s.db.Model(&Operation{}).Where("\"order\" = ?", order).Update("command", command).Error
}

// LatestVersionID returns the highest known VersionID, or 0 if no
// version has ever been appended.
func (s *Store) LatestVersionID() (int64, error) {
	var v Version
	err := s.db.Order("version_id DESC").First(&v).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.VersionID, nil
}

// AppendVersion inserts a new Version row.
func (s *Store) AppendVersion(v *Version) error {
	return s.db.Create(v).Error
}

// VersionsAfter returns all Versions strictly greater than latestVersionID.
func (s *Store) VersionsAfter(latestVersionID int64) ([]Version, error) {
	var versions []Version
	err := s.db.Where("version_id > ?", latestVersionID).Order("version_id ASC").Find(&versions).Error
	return versions, err
}

// OperationsInVersions returns every Operation whose VersionID is one of
// the given version ids.
func (s *Store) OperationsInVersions(versionIDs []int64) ([]Operation, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}
	var ops []Operation
	err := s.db.Where("version_id IN ?", versionIDs).Order("\"order\" ASC").Find(&ops).Error
	return ops, err
}

// RelinkToVersion assigns versionID to every operation named by orders,
// used at the end of a push once the new Version has been created.
func (s *Store) RelinkToVersion(orders []int64, versionID int64) error {
	if len(orders) == 0 {
		return nil
	}
	return s.db.Model(&Operation{}).Where("\"order\" IN ?", orders).Update("version_id", versionID).Error
}

// Node fetches a Node by its id, for push signature verification.
func (s *Store) Node(nodeID string) (*Node, error) {
	var n Node
	if err := s.db.Where("node_id = ?", nodeID).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNode inserts a freshly registered Node.
func (s *Store) CreateNode(n *Node) error {
	return s.db.Create(n).Error
}

// AllNodes returns every registered node, used by trim to determine
// acknowledgement coverage.
func (s *Store) AllNodes() ([]Node, error) {
	var nodes []Node
	err := s.db.Find(&nodes).Error
	return nodes, err
}

// UpdateNodeAck raises nodeID's recorded acknowledgement to versionID,
// called by the pull handler once it knows a node has received every
// version up to and including versionID. Acknowledgement only moves
// forward: a no-op if the node is unknown or versionID does not exceed
// what is already recorded.
func (s *Store) UpdateNodeAck(nodeID string, versionID int64) error {
	if versionID == 0 {
		return nil
	}
	return s.db.Model(&Node{}).
		Where("node_id = ? AND last_acked_version_id < ?", nodeID, versionID).
		Update("last_acked_version_id", versionID).Error
}

// TrimBelow deletes operations with version_id <= minAcked and versions
// strictly less than minAcked. Callers must first confirm every known
// node has acknowledged at least one version (spec.md §4.11).
func (s *Store) TrimBelow(minAcked int64) error {
	if err := s.db.Where("version_id <= ?", minAcked).Delete(&Operation{}).Error; err != nil {
		return err
	}
	return s.db.Where("version_id < ?", minAcked).Delete(&Version{}).Error
}

// DeleteAllOperationsAndVersions clears the entire local operation log
// and version history, used by client Repair before reloading from a
// server snapshot.
func (s *Store) DeleteAllOperationsAndVersions() error {
	if err := s.db.Where("1 = 1").Delete(&Operation{}).Error; err != nil {
		return err
	}
	return s.db.Where("1 = 1").Delete(&Version{}).Error
}

// WriteLog records a best-effort diagnostic entry (e.g. a repair
// decision) to the optional sync_logs sink.
func (s *Store) WriteLog(source, errMsg string, nodeID *string) error {
	entry := &LogEntry{
		Created: time.Now(),
		Source:  source,
		Error:   errMsg,
		NodeID:  nodeID,
	}
	return s.db.Create(entry).Error
}
