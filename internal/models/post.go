package models

// Post is an image post owned by a user.
type Post struct {
	BaseModel
	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`
	ImageURL    string `gorm:"type:varchar(255)" json:"image_url,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// TableName 指定 Post 模型的表名。
func (Post) TableName() string {
	return "posts"
}

// PostLike is unique per (post, user).
type PostLike struct {
	BaseModel
	PostID uint `gorm:"not null;uniqueIndex:idx_post_like" json:"post_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_post_like" json:"user_id"`
}

// TableName 指定 PostLike 模型的表名。
func (PostLike) TableName() string {
	return "post_likes"
}

// PostComment supports one level of nesting through ParentID.
type PostComment struct {
	BaseModel
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
}

// TableName 指定 PostComment 模型的表名。
func (PostComment) TableName() string {
	return "post_comments"
}

// PostCounts is the like/comment tally sent with post activity events.
type PostCounts struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}
