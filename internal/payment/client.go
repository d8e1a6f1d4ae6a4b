// Package payment implements the HTTP client for the external payment
// provider.  The provider exposes a two-step card flow: create a
// transaction to obtain a redirect URL plus a token, then commit the
// token after the customer returns to learn the authorization status.
package payment

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"
)

// StatusAuthorized is the only provider status that releases a staged
// reservation into a real booking.  Every other status, and every
// provider error, is treated as not authorized.
const StatusAuthorized = "AUTHORIZED"

// Client talks to the provider's REST API.
type Client struct {
    httpClient *http.Client
    baseURL    string
    apiKey     string
}

// NewClient returns a Client for the given provider base URL and API
// key.  Requests time out after ten seconds.
func NewClient(baseURL, apiKey string) *Client {
    return &Client{
        httpClient: &http.Client{Timeout: 10 * time.Second},
        baseURL:    baseURL,
        apiKey:     apiKey,
    }
}

type createRequest struct {
    BuyOrder  string `json:"buy_order"`
    SessionID string `json:"session_id"`
    Amount    int64  `json:"amount"`
    ReturnURL string `json:"return_url"`
}

type createResponse struct {
    Token string `json:"token"`
    URL   string `json:"url"`
}

type commitResponse struct {
    Status   string `json:"status"`
    BuyOrder string `json:"buy_order"`
    Amount   int64  `json:"amount"`
}

// CreateTransaction registers a pending charge with the provider and
// returns the redirect URL the customer must visit plus the token the
// provider will echo back on return.
func (c *Client) CreateTransaction(ctx context.Context, buyOrder, sessionID string, amount int64, returnURL string) (string, string, error) {
    body, err := json.Marshal(createRequest{
        BuyOrder:  buyOrder,
        SessionID: sessionID,
        Amount:    amount,
        ReturnURL: returnURL,
    })
    if err != nil {
        return "", "", err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewBuffer(body))
    if err != nil {
        return "", "", err
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+c.apiKey)

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return "", "", fmt.Errorf("payment: create transaction: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
        return "", "", fmt.Errorf("payment: create transaction: provider returned %s", resp.Status)
    }
    var out createResponse
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return "", "", fmt.Errorf("payment: create transaction: decode response: %w", err)
    }
    if out.Token == "" || out.URL == "" {
        return "", "", fmt.Errorf("payment: create transaction: provider response missing token or url")
    }
    return out.URL, out.Token, nil
}

// CommitTransaction resolves a returned token to its final status.
// The returned status is the provider's verbatim value; callers must
// compare it against StatusAuthorized.
func (c *Client) CommitTransaction(ctx context.Context, token string) (string, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/transactions/"+token, nil)
    if err != nil {
        return "", err
    }
    req.Header.Set("Authorization", "Bearer "+c.apiKey)

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return "", fmt.Errorf("payment: commit transaction: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return "", fmt.Errorf("payment: commit transaction: provider returned %s", resp.Status)
    }
    var out commitResponse
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return "", fmt.Errorf("payment: commit transaction: decode response: %w", err)
    }
    return out.Status, nil
}
