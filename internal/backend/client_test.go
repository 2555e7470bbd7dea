package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const testUserID = "3f1c2a9e-8b7d-4c6e-9a5b-1d2e3f4a5b6c"

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestServer(t *testing.T, setup func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	setup(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return New(ts.URL, 5*time.Second, staticToken("tok-123"), nil)
}

func TestLogin(t *testing.T) {
	c := newTestServer(t, func(r *gin.Engine) {
		r.POST("/api/user/login", func(ctx *gin.Context) {
			var req LoginRequest
			if err := ctx.ShouldBindJSON(&req); err != nil || req.Email != "ana@example.com" {
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"userId": testUserID, "username": "ana", "email": req.Email,
				"roleEnum": "ALUNO", "turnoEnum": nil, "token": "jwt",
			})
		})
	})

	res, err := c.Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	creds := res.Credentials()
	if creds.Token != "jwt" || creds.User.UserID != testUserID || creds.User.Role != "ALUNO" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestLoginRejectsNonUUID(t *testing.T) {
	c := newTestServer(t, func(r *gin.Engine) {
		r.POST("/api/user/login", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"userId": "eyJhbGciOi", "token": "jwt"})
		})
	})
	if _, err := c.Login(context.Background(), "a", "b"); err == nil {
		t.Fatal("Login() should reject a non-UUID user id")
	}
}

func TestBearerHeaderAndPaging(t *testing.T) {
	var gotAuth, gotPage, gotSize string
	c := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/chat/conversations/:id/messages", func(ctx *gin.Context) {
			gotAuth = ctx.GetHeader("Authorization")
			gotPage = ctx.Query("page")
			gotSize = ctx.Query("size")
			ctx.JSON(http.StatusOK, gin.H{
				"content":       []gin.H{{"id": "m1", "content": "hi"}},
				"totalElements": 1, "totalPages": 1, "first": true, "last": true, "empty": false,
			})
		})
	})

	page, err := c.Messages(context.Background(), "c1", 0, 30)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPage != "0" || gotSize != "30" {
		t.Errorf("page/size = %s/%s, want 0/30", gotPage, gotSize)
	}
	if len(page.Content) != 1 || !strings.Contains(string(page.Content[0]), `"m1"`) {
		t.Errorf("content = %s", page.Content)
	}
}

func TestUnauthorizedTriggersCallback(t *testing.T) {
	c := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/chat/conversations", func(ctx *gin.Context) {
			ctx.String(http.StatusUnauthorized, "expired")
		})
	})
	called := 0
	c.OnUnauthorized = func() { called++ }

	_, err := c.Conversations(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != http.StatusUnauthorized || serr.Body != "expired" {
		t.Errorf("status error = %+v", serr)
	}
	if called != 1 {
		t.Errorf("OnUnauthorized called %d times, want 1", called)
	}
}

func TestServerErrorIsNotUnauthorized(t *testing.T) {
	c := newTestServer(t, func(r *gin.Engine) {
		r.DELETE("/api/posts/delete/:id", func(ctx *gin.Context) {
			ctx.String(http.StatusInternalServerError, "boom")
		})
	})
	c.OnUnauthorized = func() { t.Error("OnUnauthorized should not run on 500") }

	err := c.DeletePost(context.Background(), "p1")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}

func TestPostsQuery(t *testing.T) {
	var got string
	c := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/posts", func(ctx *gin.Context) {
			got = ctx.Request.URL.RawQuery
			ctx.JSON(http.StatusOK, gin.H{"items": []gin.H{{"postId": "p1", "likeCount": 3}}, "nextCursor": "abc"})
		})
	})

	page, err := c.Posts(context.Background(), PostQuery{Cursor: "x", AuthorID: testUserID})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"limit=10", "cursor=x", "authorId=" + testUserID} {
		if !strings.Contains(got, want) {
			t.Errorf("query %q missing %s", got, want)
		}
	}
	if page.NextCursor != "abc" || len(page.Items) != 1 || page.Items[0].LikeCount != 3 {
		t.Errorf("page = %+v", page)
	}
}

func TestEmptyBodyIsOK(t *testing.T) {
	c := newTestServer(t, func(r *gin.Engine) {
		r.POST("/api/posts/:id/likes", func(ctx *gin.Context) {
			ctx.Status(http.StatusOK)
		})
	})
	if _, err := c.Like(context.Background(), "p1"); err != nil {
		t.Errorf("Like() error = %v", err)
	}
}

func TestNearbyVehiclesQuery(t *testing.T) {
	var got string
	c := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/sppo/near", func(ctx *gin.Context) {
			got = ctx.Request.URL.RawQuery
			ctx.JSON(http.StatusOK, []gin.H{{"ordem": "A1", "linha": "100", "latitude": "-22.9"}})
		})
	})
	rows, err := c.NearbyVehicles(context.Background(), DefaultNearbyQuery())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["ordem"] != "A1" {
		t.Errorf("rows = %v", rows)
	}
	for _, want := range []string{"windowSeconds=300", "radiusMeters=300", "includeStopped=true", "minSpeedKmh=0"} {
		if !strings.Contains(got, want) {
			t.Errorf("query %q missing %s", got, want)
		}
	}
}
