package bindingstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/openwallet/nmc-attestor/pkg/binding"
)

// BindingDao is a data access object that maps directly to the 'name_bindings' table in PostgreSQL.
// The name column is deliberately not unique: a credential re-registered
// under the same name keeps its earlier rows as history.
type BindingDao struct {
	bun.BaseModel  `bun:"table:name_bindings,alias:nb"`
	ID             int64     `bun:"id,pk,autoincrement"`
	Name           string    `bun:"name,notnull,type:varchar(255)"`
	NymID          string    `bun:"nym_id,notnull,type:varchar(255)"`
	CredentialHash string    `bun:"credential_hash,notnull,type:varchar(255)"`
	Active         bool      `bun:"active,notnull,default:false"`
	RegData        *string   `bun:"reg_data,type:text"`
	UpdateTxID     *string   `bun:"update_txid,type:varchar(64)"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// toBindingDao converts a binding.NameBinding to BindingDao.
func toBindingDao(b *binding.NameBinding) *BindingDao {
	dao := &BindingDao{
		Name:           b.Name,
		NymID:          b.NymID,
		CredentialHash: b.CredentialHash,
		Active:         b.Active,
	}

	if b.RegData != "" {
		dao.RegData = &b.RegData
	}
	if b.UpdateTxID != "" {
		dao.UpdateTxID = &b.UpdateTxID
	}

	return dao
}

// toBinding converts a BindingDao to binding.NameBinding.
func toBinding(dao *BindingDao) *binding.NameBinding {
	b := &binding.NameBinding{
		Name:           dao.Name,
		NymID:          dao.NymID,
		CredentialHash: dao.CredentialHash,
		Active:         dao.Active,
		CreatedAt:      dao.CreatedAt,
		UpdatedAt:      dao.UpdatedAt,
	}

	if dao.RegData != nil {
		b.RegData = *dao.RegData
	}
	if dao.UpdateTxID != nil {
		b.UpdateTxID = *dao.UpdateTxID
	}

	return b
}
