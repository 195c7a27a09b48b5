package gateway

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/apimanagement/armapimanagement"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/factory"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/metrics"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"
)

// NewClientOptions builds the Resource Manager pipeline options shared by
// every API Management object client. Retries are off: a failed call is
// returned to the caller as is.
func NewClientOptions(cfg config.GatewayConfig) *arm.ClientOptions {
	resourceManager := cloud.AzurePublic.Services[cloud.ResourceManager]
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		resourceManager.Endpoint = baseURL
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // test environments only
	}

	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			APIVersion: cfg.APIVersion,
			Cloud: cloud.Configuration{
				ActiveDirectoryAuthorityHost: cloud.AzurePublic.ActiveDirectoryAuthorityHost,
				Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
					cloud.ResourceManager: resourceManager,
				},
			},
			Retry:           policy.RetryOptions{MaxRetries: -1},
			Transport:       &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
			PerCallPolicies: []policy.Policy{newInstrumentPolicy()},
		},
		DisableRPRegistration: true,
	}
}

func NewSubscriptionClient(cfg config.GatewayConfig, credential azcore.TokenCredential) (*armapimanagement.SubscriptionClient, error) {
	return armapimanagement.NewSubscriptionClient(cfg.AzureSubscriptionID, credential, NewClientOptions(cfg))
}

type instrumentPolicy struct {
	logger logrus.FieldLogger
}

func newInstrumentPolicy() *instrumentPolicy {
	return &instrumentPolicy{logger: factory.NewModuleLogger("gateway-client")}
}

func (p *instrumentPolicy) Do(req *policy.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := req.Next()

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.ObserveGatewayRequest(req.Raw().Method, status, time.Since(start))

	entry := p.logger.WithFields(logrus.Fields{
		"method": req.Raw().Method,
		"path":   req.Raw().URL.Path,
		"status": status,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("gateway_request")

	return resp, err
}
