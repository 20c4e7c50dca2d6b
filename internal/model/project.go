package model

import "time"

// ProjectStatus はプロジェクトの状態を表す。
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Valid は定義済みの状態かどうかを返す。
func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectArchived
}

// Project は家族内のプロジェクトを表す。
type Project struct {
	ID          string
	FamilyID    string
	Name        string
	Description string
	Status      ProjectStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SprintStatus はスプリントの状態を表す。
// planned -> active -> completed の順にのみ遷移する。
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// Sprint はプロジェクト内の期間を区切った作業単位を表す。
// StartDate/EndDateは日付のみ（UTC 0時）を保持する。
type Sprint struct {
	ID        string
	ProjectID string
	Name      string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
	Status    SprintStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus はタスクの状態を表す。
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Valid は定義済みの状態かどうかを返す。
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// TaskPriority はタスクの優先度を表す。
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid は定義済みの優先度かどうかを返す。
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task はプロジェクト内のタスクを表す。
// SprintIDがnilのタスクはバックログに属する。
type Task struct {
	ID          string
	ProjectID   string
	SprintID    *string
	Title       string
	Description string // サニタイズ済みプレーンテキスト
	Status      TaskStatus
	Priority    TaskPriority
	AssigneeID  *string
	DueDate     *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Comment はタスクへのコメントを表す。
type Comment struct {
	ID         string
	TaskID     string
	AuthorID   string
	AuthorName string
	Body       string // サニタイズ済みプレーンテキスト
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProjectFilter はプロジェクト一覧の絞り込み条件を表す。
type ProjectFilter struct {
	Status   ProjectStatus
	Search   string
	Ordering string
}

// TaskFilter はタスク一覧の絞り込み条件を表す。
// BacklogがtrueのときSprintIDは無視され、スプリント未割当のタスクのみを返す。
type TaskFilter struct {
	Status     TaskStatus
	Priority   TaskPriority
	AssigneeID string
	SprintID   string
	Backlog    bool
	Search     string
	Ordering   string
}

// Page はページ番号方式の取得範囲を表す。
type Page struct {
	Number int
	Size   int
}

// Offset はSQLのOFFSET値を返す。
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
