// Package store は、データの永続化機能を提供します。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stsysd/taskstation/db"
	"github.com/stsysd/taskstation/model"
)

// TimeLayout は日時を保存する形式です。固定長のUTC表記のため、文字列の辞書順と時系列順が一致します。
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore はSQLiteを使用したタスクストアの実装です。
type SQLiteStore struct {
	conn    *sql.DB
	queries *db.Queries
}

// NewSQLiteStore は新しいSQLiteStoreを作成します。
func NewSQLiteStore(dataDir string, migrate func(*sql.DB) error) (*SQLiteStore, error) {
	// データディレクトリの作成（存在しない場合）
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := Open(DBPath(dataDir))
	if err != nil {
		return nil, err
	}

	if migrate != nil {
		if err := migrate(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &SQLiteStore{
		conn:    conn,
		queries: db.New(conn),
	}, nil
}

// DBPath はデータディレクトリ内のデータベースファイルのパスを返します。
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "taskstation.db")
}

// Open はSQLiteデータベースへ接続します。
func Open(dbPath string) (*sql.DB, error) {
	// ロック競合時は即座に失敗せず待機する
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return conn, nil
}

// CreateTask は新しいタスクにIDを割り当ててデータベースに保存します。
func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	if err := task.SetID(uuid.New().String()); err != nil {
		return err
	}

	file := attachmentColumns(task.Attachment())
	err := s.queries.CreateTask(ctx, db.CreateTaskParams{
		ID:              task.ID(),
		Title:           task.Title(),
		Description:     task.Description(),
		CreatedAt:       formatTime(task.CreatedAt()),
		SlaHours:        int64(task.SLAHours()),
		DueDate:         formatTime(task.DueDate()),
		Status:          task.Status().String(),
		FileUrl:         file.url,
		FileData:        file.data,
		FileName:        file.name,
		FileContentType: file.contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTask はタスクの内容を丸ごと置き換えます。
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.Task) error {
	file := attachmentColumns(task.Attachment())
	result, err := s.queries.UpdateTask(ctx, db.UpdateTaskParams{
		Title:           task.Title(),
		Description:     task.Description(),
		SlaHours:        int64(task.SLAHours()),
		DueDate:         formatTime(task.DueDate()),
		Status:          task.Status().String(),
		FileUrl:         file.url,
		FileData:        file.data,
		FileName:        file.name,
		FileContentType: file.contentType,
		ID:              task.ID(),
	})
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	// 更新された行数を確認
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task %s: %w", task.ID(), model.ErrTaskNotFound)
	}

	return nil
}

// GetTask は指定されたIDのタスクを取得します。
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row, err := s.queries.GetTask(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return toTask(row)
}

// ListTasks はすべてのタスクを作成日時の降順で取得します。
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*model.Task, error) {
	rows, err := s.queries.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return toTasks(rows)
}

// ListTasksByStatus は保存されたステータスが一致するタスクを取得します。
func (s *SQLiteStore) ListTasksByStatus(ctx context.Context, status model.Status) ([]*model.Task, error) {
	rows, err := s.queries.ListTasksByStatus(ctx, status.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by status: %w", err)
	}
	return toTasks(rows)
}

// ListOverdueTasks はOVERDUEとして保存されたタスクと、期限を過ぎたPENDINGのタスクを取得します。
func (s *SQLiteStore) ListOverdueTasks(ctx context.Context, now time.Time) ([]*model.Task, error) {
	rows, err := s.queries.ListOverdueTasks(ctx, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	return toTasks(rows)
}

// MarkOverdueTasks は期限を過ぎたPENDINGのタスクをOVERDUEに更新し、更新件数を返します。
func (s *SQLiteStore) MarkOverdueTasks(ctx context.Context, now time.Time) (int, error) {
	result, err := s.queries.MarkOverdueTasks(ctx, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue tasks: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// Ping はデータベースへの接続を確認します。
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close はデータベース接続を閉じます。
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type fileColumns struct {
	url         sql.NullString
	data        []byte
	name        sql.NullString
	contentType sql.NullString
}

// attachmentColumns は添付ファイルをテーブルの列に展開します。
func attachmentColumns(a model.Attachment) fileColumns {
	switch a := a.(type) {
	case *model.ExternalFile:
		return fileColumns{url: sql.NullString{String: a.URL, Valid: true}}
	case *model.InlineFile:
		return fileColumns{
			data:        a.Data,
			name:        sql.NullString{String: a.Name, Valid: true},
			contentType: sql.NullString{String: a.ContentType, Valid: true},
		}
	}
	return fileColumns{}
}

func toAttachment(row db.Task) model.Attachment {
	switch {
	case row.FileUrl.Valid:
		return &model.ExternalFile{URL: row.FileUrl.String}
	case row.FileData != nil || row.FileName.Valid || row.FileContentType.Valid:
		return &model.InlineFile{
			Data:        row.FileData,
			Name:        row.FileName.String,
			ContentType: row.FileContentType.String,
		}
	}
	return nil
}

func toTask(row db.Task) (*model.Task, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	task, err := model.LoadTask(
		row.ID,
		row.Title,
		row.Description,
		createdAt,
		int(row.SlaHours),
		model.Status(row.Status),
		toAttachment(row),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", row.ID, err)
	}
	return task, nil
}

func toTasks(rows []db.Task) ([]*model.Task, error) {
	tasks := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		task, err := toTask(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
