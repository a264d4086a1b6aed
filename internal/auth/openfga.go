package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openfga/go-sdk/client"
	"github.com/sirupsen/logrus"
)

// OpenFGAClient OpenFGA 客户端封装
type OpenFGAClient struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
	apiURL  string
	log     *logrus.Logger
}

// NewOpenFGAClient 创建 OpenFGA 客户端
func NewOpenFGAClient(apiURL, storeID, modelID string, log *logrus.Logger) (*OpenFGAClient, error) {
	fgaClient, err := client.NewSdkClient(&client.ClientConfiguration{
		ApiUrl:               apiURL,
		StoreId:              storeID,
		AuthorizationModelId: modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAClient{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
		apiURL:  apiURL,
		log:     log,
	}, nil
}

// NewOpenFGAClientWithRetry 创建 OpenFGA 客户端 (带重试)
func NewOpenFGAClientWithRetry(apiURL, storeID, modelID string, maxRetries int, retryInterval time.Duration, log *logrus.Logger) (*OpenFGAClient, error) {
	var fga *OpenFGAClient
	var err error

	for i := 0; i < maxRetries; i++ {
		fga, err = NewOpenFGAClient(apiURL, storeID, modelID, log)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			healthy := fga.CheckHealth(ctx)
			cancel()
			if healthy {
				return fga, nil
			}
			err = fmt.Errorf("OpenFGA health check failed")
		}

		log.WithFields(logrus.Fields{
			"attempt": i + 1,
			"max":     maxRetries,
			"error":   err,
		}).Warn("OpenFGA 连接失败,准备重试")

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	return nil, fmt.Errorf("failed to connect to OpenFGA after %d attempts: %w", maxRetries, err)
}

// CheckPermission 检查用户对对象是否拥有某关系
func (f *OpenFGAClient) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	body := client.ClientCheckRequest{
		User:     fmt.Sprintf("user:%s", userID),
		Relation: relation,
		Object:   fmt.Sprintf("%s:%s", objectType, objectID),
	}

	resp, err := f.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	return resp.GetAllowed(), nil
}

// SetRelation 写入关系元组
func (f *OpenFGAClient) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{
				User:     fmt.Sprintf("user:%s", userID),
				Relation: relation,
				Object:   fmt.Sprintf("%s:%s", objectType, objectID),
			},
		},
	}

	_, err := f.client.Write(ctx).Body(body).Execute()
	if err != nil {
		return fmt.Errorf("failed to write relation: %w", err)
	}

	f.log.WithFields(logrus.Fields{
		"user":     userID,
		"relation": relation,
		"object":   fmt.Sprintf("%s:%s", objectType, objectID),
	}).Debug("OpenFGA 关系写入成功")
	return nil
}

// LinkTemplateToStudy 建立模板到研究的从属关系
// 研究成员由此获得模板的 viewer 权限
func (f *OpenFGAClient) LinkTemplateToStudy(ctx context.Context, templateID, studyID string) error {
	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{
				User:     fmt.Sprintf("study:%s", studyID),
				Relation: "parent_study",
				Object:   fmt.Sprintf("template:%s", templateID),
			},
		},
	}

	_, err := f.client.Write(ctx).Body(body).Execute()
	if err != nil {
		return fmt.Errorf("failed to link template to study: %w", err)
	}
	return nil
}

// DeleteRelation 删除关系元组
func (f *OpenFGAClient) DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	body := client.ClientWriteRequest{
		Deletes: []client.ClientTupleKeyWithoutCondition{
			{
				User:     fmt.Sprintf("user:%s", userID),
				Relation: relation,
				Object:   fmt.Sprintf("%s:%s", objectType, objectID),
			},
		},
	}

	_, err := f.client.Write(ctx).Body(body).Execute()
	if err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	return nil
}

// CheckHealth 检查 OpenFGA 服务健康状态
func (f *OpenFGAClient) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"/healthz", nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// PermissionMiddleware 资源权限校验中间件
// objectType 为 template 或 study,objectID 取路径参数 id
func PermissionMiddleware(fga PermissionChecker, objectType, relation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "user not authenticated",
			})
			c.Abort()
			return
		}

		objectID := c.Param("id")
		if objectID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "missing resource id",
			})
			c.Abort()
			return
		}

		allowed, err := fga.CheckPermission(c.Request.Context(), userID, relation, objectType, objectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "permission check failed",
			})
			c.Abort()
			return
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": fmt.Sprintf("no %s permission on %s", relation, objectType),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
