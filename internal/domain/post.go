package domain

import "time"

// Post es una publicación con foto.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Photo     string    `json:"photo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment pertenece a un post y a su autor.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentView es un comentario con los datos públicos de su autor.
type CommentView struct {
	Comment
	PostedBy UserSummary `json:"postedBy"`
}

// PostView es un post ensamblado con autor, likes y comentarios.
type PostView struct {
	Post
	PostedBy UserSummary   `json:"postedBy"`
	Likes    []string      `json:"likes"`
	Comments []CommentView `json:"comments"`
}

// PostUpdate describe una edición parcial de un post.
type PostUpdate struct {
	Title *string
	Body  *string
	Photo *string
}

func (p PostUpdate) Empty() bool {
	return p.Title == nil && p.Body == nil && p.Photo == nil
}
