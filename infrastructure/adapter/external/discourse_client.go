package external

import (
	"context"
	"net/url"
	"time"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// DiscourseClientAdapter talks to the forum REST API.
type DiscourseClientAdapter struct {
	rest *restClient
}

func NewDiscourseClientAdapter(baseURL, token string, timeout time.Duration, log logger.Logger) outbound.DiscourseClient {
	return &DiscourseClientAdapter{
		rest: newRESTClient(baseURL, token, domain.SystemDiscourse, timeout, log),
	}
}

func (c *DiscourseClientAdapter) GetUser(ctx context.Context, id string) (*domain.DiscourseUser, error) {
	var user domain.DiscourseUser
	if err := c.rest.get(ctx, "/users/"+url.PathEscape(id)+".json", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *DiscourseClientAdapter) CreateUser(ctx context.Context, user *domain.DiscourseUser) (*domain.DiscourseUser, error) {
	var created domain.DiscourseUser
	if err := c.rest.post(ctx, "/users.json", user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *DiscourseClientAdapter) UpdateUser(ctx context.Context, id string, user *domain.DiscourseUser) (*domain.DiscourseUser, error) {
	var updated domain.DiscourseUser
	if err := c.rest.put(ctx, "/users/"+url.PathEscape(id)+".json", user, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *DiscourseClientAdapter) GetCategory(ctx context.Context, id string) (*domain.DiscourseCategory, error) {
	var category domain.DiscourseCategory
	if err := c.rest.get(ctx, "/categories/"+url.PathEscape(id)+".json", &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *DiscourseClientAdapter) CreateCategory(ctx context.Context, category *domain.DiscourseCategory) (*domain.DiscourseCategory, error) {
	var created domain.DiscourseCategory
	if err := c.rest.post(ctx, "/categories.json", category, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *DiscourseClientAdapter) UpdateCategory(ctx context.Context, id string, category *domain.DiscourseCategory) (*domain.DiscourseCategory, error) {
	var updated domain.DiscourseCategory
	if err := c.rest.put(ctx, "/categories/"+url.PathEscape(id)+".json", category, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *DiscourseClientAdapter) GetTopic(ctx context.Context, id string) (*domain.DiscourseTopic, error) {
	var topic domain.DiscourseTopic
	if err := c.rest.get(ctx, "/t/"+url.PathEscape(id)+".json", &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *DiscourseClientAdapter) CreateTopic(ctx context.Context, topic *domain.DiscourseTopic) (*domain.DiscourseTopic, error) {
	var created domain.DiscourseTopic
	if err := c.rest.post(ctx, "/topics.json", topic, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *DiscourseClientAdapter) UpdateTopic(ctx context.Context, id string, topic *domain.DiscourseTopic) (*domain.DiscourseTopic, error) {
	var updated domain.DiscourseTopic
	if err := c.rest.put(ctx, "/t/"+url.PathEscape(id)+".json", topic, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *DiscourseClientAdapter) GetPost(ctx context.Context, id string) (*domain.DiscoursePost, error) {
	var post domain.DiscoursePost
	if err := c.rest.get(ctx, "/posts/"+url.PathEscape(id)+".json", &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *DiscourseClientAdapter) CreatePost(ctx context.Context, post *domain.DiscoursePost) (*domain.DiscoursePost, error) {
	var created domain.DiscoursePost
	if err := c.rest.post(ctx, "/posts.json", post, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *DiscourseClientAdapter) UpdatePost(ctx context.Context, id string, update *domain.DiscoursePostUpdate) (*domain.DiscoursePost, error) {
	var updated domain.DiscoursePost
	if err := c.rest.put(ctx, "/posts/"+url.PathEscape(id)+".json", update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeactivateUser suspends the account instead of deleting it, so the forum
// history stays attributable.
func (c *DiscourseClientAdapter) DeactivateUser(ctx context.Context, id string) error {
	return c.rest.put(ctx, "/admin/users/"+url.PathEscape(id)+"/deactivate.json", nil, nil)
}

func (c *DiscourseClientAdapter) ArchiveCategory(ctx context.Context, id string) error {
	return c.rest.put(ctx, "/categories/"+url.PathEscape(id)+"/archive.json", nil, nil)
}

func (c *DiscourseClientAdapter) DeleteTopic(ctx context.Context, id string) error {
	return c.rest.delete(ctx, "/t/"+url.PathEscape(id)+".json")
}

func (c *DiscourseClientAdapter) DeletePost(ctx context.Context, id string) error {
	return c.rest.delete(ctx, "/posts/"+url.PathEscape(id)+".json")
}
