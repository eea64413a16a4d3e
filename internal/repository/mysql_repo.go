package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

func init() {
	Register(constant.DriverMySQL, openMySQL)
}

func openMySQL(_ context.Context, cfg *config.Config) (*Repositories, error) {
	gen, err := newIDGenerator(cfg)
	if err != nil {
		return nil, err
	}

	db, err := initMySQL(cfg)
	if err != nil {
		return nil, err
	}
	return newMySQLRepositories(db, cfg, gen)
}

// initMySQL initializes MySQL connection
func initMySQL(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func newMySQLRepositories(db *gorm.DB, cfg *config.Config, gen idgen.IDGenerator) (*Repositories, error) {
	convTable := cfg.Store.ConversationCollection
	msgTable := cfg.Store.MessageCollection

	if cfg.MySQL.AutoMigrate {
		if err := db.Table(convTable).AutoMigrate(&mysqlConversation{}); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", convTable, err)
		}
		if err := db.Table(msgTable).AutoMigrate(&mysqlMessage{}); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", msgTable, err)
		}
	}

	return &Repositories{
		Driver:       constant.DriverMySQL,
		Conversation: &mysqlConversationRepo{db: db, table: convTable},
		Message:      &mysqlMessageRepo{db: db, table: msgTable, gen: gen},
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		close: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}

// mysqlConversation is a conversation row. Timestamps are unix milliseconds.
type mysqlConversation struct {
	Id           string         `gorm:"column:id;primaryKey;size:191"`
	Participants datatypes.JSON `gorm:"column:participants"`
	LastMessage  string         `gorm:"column:last_message;type:text"`
	LastUpdated  int64          `gorm:"column:last_updated;index"`
	CreatedAt    int64          `gorm:"column:created_at;autoCreateTime:false"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
}

func newMySQLConversation(conv *entity.Conversation) (*mysqlConversation, error) {
	participants, err := sonic.Marshal(conv.Participants)
	if err != nil {
		return nil, err
	}
	metadata, err := sonic.Marshal(conv.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return &mysqlConversation{
		Id:           conv.Id,
		Participants: datatypes.JSON(participants),
		LastMessage:  conv.LastMessage,
		LastUpdated:  conv.LastUpdated,
		CreatedAt:    conv.CreatedAt,
		Metadata:     datatypes.JSON(metadata),
	}, nil
}

func (m *mysqlConversation) toEntity() (*entity.Conversation, error) {
	conv := &entity.Conversation{
		Id:          m.Id,
		LastMessage: m.LastMessage,
		LastUpdated: m.LastUpdated,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Participants) > 0 {
		if err := sonic.Unmarshal(m.Participants, &conv.Participants); err != nil {
			return nil, fmt.Errorf("failed to decode participants of %s: %w", m.Id, err)
		}
	}
	if len(m.Metadata) > 0 {
		if err := sonic.Unmarshal(m.Metadata, &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", m.Id, err)
		}
	}
	return conv, nil
}

// mysqlMessage is a message row. Timestamp is unix milliseconds.
type mysqlMessage struct {
	Id             string  `gorm:"column:id;primaryKey;size:64"`
	ConversationId string  `gorm:"column:conversation_id;size:191;index:idx_conversation_timestamp,priority:1"`
	SenderId       string  `gorm:"column:sender_id;size:191"`
	Text           string  `gorm:"column:text;type:text"`
	Timestamp      int64   `gorm:"column:timestamp;index:idx_conversation_timestamp,priority:2"`
	Status         int32   `gorm:"column:status"`
	ReplyToId      *string `gorm:"column:reply_to_id;size:191"`
	ReplyToName    *string `gorm:"column:reply_to_name;size:191"`
	ReplyToText    *string `gorm:"column:reply_to_text;type:text"`
}

func (m *mysqlMessage) toEntity() *entity.Message {
	return &entity.Message{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		Text:           m.Text,
		Timestamp:      m.Timestamp,
		Status:         m.Status,
		ReplyToId:      m.ReplyToId,
		ReplyToName:    m.ReplyToName,
		ReplyToText:    m.ReplyToText,
	}
}

type mysqlConversationRepo struct {
	db    *gorm.DB
	table string
}

// Upsert locks the row, merges in Go and writes the result back in one transaction
func (r *mysqlConversationRepo) Upsert(ctx context.Context, in *entity.ConversationUpsert) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row mysqlConversation
		err := tx.Table(r.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", in.Id).
			First(&row).Error

		var existing *entity.Conversation
		switch {
		case err == nil:
			if existing, err = row.toEntity(); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		next, err := newMySQLConversation(in.Merge(existing))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Table(r.table).Create(next).Error
		}
		return tx.Table(r.table).Where("id = ?", in.Id).Updates(map[string]interface{}{
			"participants": next.Participants,
			"last_message": next.LastMessage,
			"last_updated": next.LastUpdated,
			"metadata":     next.Metadata,
		}).Error
	})
}

func (r *mysqlConversationRepo) Get(ctx context.Context, id string) (*entity.Conversation, error) {
	var row mysqlConversation
	err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity()
}

func (r *mysqlConversationRepo) ListByParticipant(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	var rows []*mysqlConversation
	err := r.db.WithContext(ctx).Table(r.table).
		Where("JSON_CONTAINS(participants, JSON_QUOTE(?))", userId).
		Order("last_updated DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toConversations(rows)
}

func (r *mysqlConversationRepo) ListAll(ctx context.Context) ([]*entity.Conversation, error) {
	var rows []*mysqlConversation
	if err := r.db.WithContext(ctx).Table(r.table).Order("last_updated DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toConversations(rows)
}

func toConversations(rows []*mysqlConversation) ([]*entity.Conversation, error) {
	convs := make([]*entity.Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (r *mysqlConversationRepo) UpdateTitle(ctx context.Context, id, title string, now int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"metadata":     gorm.Expr("JSON_SET(COALESCE(metadata, JSON_OBJECT()), '$.title', ?)", title),
		"last_updated": now,
	})
}

func (r *mysqlConversationRepo) UpdateLastMessage(ctx context.Context, id, lastMessage string, now int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"last_message": lastMessage,
		"last_updated": now,
	})
}

// update applies updates to an existing row; zero affected rows means either
// a missing row or an unchanged one, told apart by an existence check
func (r *mysqlConversationRepo) update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return mysqlExists(ctx, r.db, r.table, id)
}

func (r *mysqlConversationRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Delete(&mysqlConversation{}).Error
}

type mysqlMessageRepo struct {
	db    *gorm.DB
	table string
	gen   idgen.IDGenerator
}

func (r *mysqlMessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	id, err := r.gen.NextID()
	if err != nil {
		return err
	}

	row := &mysqlMessage{
		Id:             id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		Status:         msg.Status,
		ReplyToId:      msg.ReplyToId,
		ReplyToName:    msg.ReplyToName,
		ReplyToText:    msg.ReplyToText,
	}
	if err := r.db.WithContext(ctx).Table(r.table).Create(row).Error; err != nil {
		return err
	}
	msg.Id = id
	return nil
}

func (r *mysqlMessageRepo) Get(ctx context.Context, id string) (*entity.Message, error) {
	var row mysqlMessage
	err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *mysqlMessageRepo) List(ctx context.Context, conversationId string, limit int, before int64) ([]*entity.Message, error) {
	query := r.db.WithContext(ctx).Table(r.table).Where("conversation_id = ?", conversationId)
	if before > 0 {
		query = query.Where("`timestamp` < ?", before)
	}
	query = query.Order("`timestamp` DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*mysqlMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]*entity.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toEntity())
	}
	return msgs, nil
}

func (r *mysqlMessageRepo) UpdateText(ctx context.Context, id, text string) error {
	res := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Update("text", text)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return mysqlExists(ctx, r.db, r.table, id)
}

func (r *mysqlMessageRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Delete(&mysqlMessage{}).Error
}

// mysqlExists returns ErrNotFound when no row with id exists in table
func mysqlExists(ctx context.Context, db *gorm.DB, table, id string) error {
	var count int64
	if err := db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
