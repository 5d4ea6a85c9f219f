package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-api/internal/domain"
)

// PostRepository persiste posts, likes y comentarios. Los métodos List* y
// GetView devuelven posts ya ensamblados con autor, likes y comentarios.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) error
	GetByID(ctx context.Context, id string) (domain.Post, error)
	GetView(ctx context.Context, id string) (domain.PostView, error)
	ListAll(ctx context.Context) ([]domain.PostView, error)
	ListByAuthor(ctx context.Context, authorID string) ([]domain.PostView, error)
	ListFeed(ctx context.Context, followerID string) ([]domain.PostView, error)
	Update(ctx context.Context, id string, upd domain.PostUpdate) (domain.Post, error)
	Delete(ctx context.Context, id string) error
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	AddComment(ctx context.Context, comment domain.Comment) error
	GetComment(ctx context.Context, id string) (domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type PgPostRepository struct {
	pool *pgxpool.Pool
}

func NewPgPostRepository(pool *pgxpool.Pool) *PgPostRepository {
	return &PgPostRepository{pool: pool}
}

const postColumns = `p.id, p.author_id, p.title, p.body, p.photo, p.created_at, p.updated_at`

const postViewSelect = `
	SELECT ` + postColumns + `,
		u.id, u.name, u.photo,
		COALESCE(ARRAY(
			SELECT l.user_id::text FROM post_likes l
			WHERE l.post_id = p.id
			ORDER BY l.created_at
		), '{}') AS likes
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

func scanPost(row pgx.Row) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.Photo, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.ErrNotFound
	}
	return p, err
}

func scanPostView(row pgx.Row) (domain.PostView, error) {
	var v domain.PostView
	err := row.Scan(
		&v.ID, &v.AuthorID, &v.Title, &v.Body, &v.Photo, &v.CreatedAt, &v.UpdatedAt,
		&v.PostedBy.ID, &v.PostedBy.Name, &v.PostedBy.Photo,
		&v.Likes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PostView{}, domain.ErrNotFound
	}
	if v.Likes == nil {
		v.Likes = []string{}
	}
	v.Comments = []domain.CommentView{}
	return v, err
}

func (r *PgPostRepository) Create(ctx context.Context, post domain.Post) error {
	const query = `
		INSERT INTO posts (id, author_id, title, body, photo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := r.pool.Exec(ctx, query, post.ID, post.AuthorID, post.Title, post.Body, post.Photo, post.CreatedAt)
	return err
}

func (r *PgPostRepository) GetByID(ctx context.Context, id string) (domain.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, id))
}

func (r *PgPostRepository) GetView(ctx context.Context, id string) (domain.PostView, error) {
	view, err := scanPostView(r.pool.QueryRow(ctx, postViewSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return domain.PostView{}, err
	}
	views := []domain.PostView{view}
	if err := r.attachComments(ctx, views); err != nil {
		return domain.PostView{}, err
	}
	return views[0], nil
}

func (r *PgPostRepository) ListAll(ctx context.Context) ([]domain.PostView, error) {
	return r.listViews(ctx, postViewSelect+` WHERE u.active ORDER BY p.created_at DESC`)
}

func (r *PgPostRepository) ListByAuthor(ctx context.Context, authorID string) ([]domain.PostView, error) {
	return r.listViews(ctx, postViewSelect+` WHERE p.author_id = $1 ORDER BY p.created_at DESC`, authorID)
}

func (r *PgPostRepository) ListFeed(ctx context.Context, followerID string) ([]domain.PostView, error) {
	query := postViewSelect + `
		JOIN follows f ON f.followee_id = p.author_id
		WHERE f.follower_id = $1 AND u.active
		ORDER BY p.created_at DESC
	`
	return r.listViews(ctx, query, followerID)
}

func (r *PgPostRepository) listViews(ctx context.Context, query string, args ...any) ([]domain.PostView, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []domain.PostView{}
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

// attachComments carga en una sola consulta los comentarios de todos los
// posts recibidos y los reparte en orden cronológico.
func (r *PgPostRepository) attachComments(ctx context.Context, views []domain.PostView) error {
	if len(views) == 0 {
		return nil
	}
	ids := make([]string, 0, len(views))
	index := make(map[string]int, len(views))
	for i, v := range views {
		ids = append(ids, v.ID)
		index[v.ID] = i
	}

	const query = `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, u.id, u.name, u.photo
		FROM post_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ANY($1::uuid[])
		ORDER BY c.created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cv domain.CommentView
		if err := rows.Scan(
			&cv.ID, &cv.PostID, &cv.UserID, &cv.Body, &cv.CreatedAt,
			&cv.PostedBy.ID, &cv.PostedBy.Name, &cv.PostedBy.Photo,
		); err != nil {
			return err
		}
		if i, ok := index[cv.PostID]; ok {
			views[i].Comments = append(views[i].Comments, cv)
		}
	}
	return rows.Err()
}

func (r *PgPostRepository) Update(ctx context.Context, id string, upd domain.PostUpdate) (domain.Post, error) {
	const query = `
		UPDATE posts p SET
			title = COALESCE($2, p.title),
			body = COALESCE($3, p.body),
			photo = COALESCE($4, p.photo),
			updated_at = NOW()
		WHERE p.id = $1
		RETURNING ` + postColumns
	return scanPost(r.pool.QueryRow(ctx, query, id, upd.Title, upd.Body, upd.Photo))
}

func (r *PgPostRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return affectedOne(tag, err)
}

// Like es idempotente: un segundo like del mismo usuario no hace nada.
func (r *PgPostRepository) Like(ctx context.Context, postID, userID string) error {
	const query = `
		INSERT INTO post_likes (post_id, user_id)
		SELECT id, $2::uuid FROM posts WHERE id = $1
		ON CONFLICT DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, postID, userID); err != nil {
		return err
	}
	return r.ensurePostExists(ctx, postID)
}

func (r *PgPostRepository) Unlike(ctx context.Context, postID, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
		return err
	}
	return r.ensurePostExists(ctx, postID)
}

func (r *PgPostRepository) ensurePostExists(ctx context.Context, postID string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgPostRepository) AddComment(ctx context.Context, comment domain.Comment) error {
	const query = `
		INSERT INTO post_comments (id, post_id, user_id, body, created_at)
		SELECT $1::uuid, id, $3::uuid, $4::text, $5::timestamptz FROM posts WHERE id = $2
	`
	tag, err := r.pool.Exec(ctx, query, comment.ID, comment.PostID, comment.UserID, comment.Body, comment.CreatedAt)
	return affectedOne(tag, err)
}

func (r *PgPostRepository) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	var c domain.Comment
	err := r.pool.QueryRow(ctx, `
		SELECT id, post_id, user_id, body, created_at FROM post_comments WHERE id = $1
	`, id).Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, err
}

func (r *PgPostRepository) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM post_comments WHERE id = $1`, id)
	return affectedOne(tag, err)
}
