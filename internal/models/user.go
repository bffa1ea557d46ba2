package models

import (
	"github.com/golang-jwt/jwt/v4"
)

// Profile is the record written at users/{uid}/profile when an account is
// created through the auth gate.
type Profile struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// InteractionRef is the user-side mirror of a stance score: a pointer back to
// the post plus the score, stored at users/{uid}/postInteractions/{postId}.
// It is not a copy of the post.
type InteractionRef struct {
	Score    int    `json:"score"`
	ParentID string `json:"parentId,omitempty"` // set when the target is a reply
}

// UserNode is the full users/{uid} subtree.
type UserNode struct {
	Profile          *Profile                  `json:"profile,omitempty"`
	PostInteractions map[string]InteractionRef `json:"postInteractions,omitempty"`
	Replies          map[string]string         `json:"replies,omitempty"` // replyId -> parentId
}

// UserCounts is the payload pushed to user-counts subscribers.
type UserCounts struct {
	Replies      int `json:"replies"`
	Interactions int `json:"interactions"`
}

// RegisterRequest defines the request body for account creation
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName,omitempty" validate:"omitempty,max=50"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}
