package rules

import (
	"regexp"
	"sync"
)

type matcherCache struct {
	mu      sync.Mutex
	m       map[string]*regexp.Regexp
	compile func(string) (*regexp.Regexp, error)
}

var (
	hostMatchers = &matcherCache{m: make(map[string]*regexp.Regexp), compile: compileHostPattern}
	urlMatchers  = &matcherCache{m: make(map[string]*regexp.Regexp), compile: compileURLPattern}
)

// Get 返回缓存中的匹配器或编译后加入缓存
func (c *matcherCache) Get(p string) (*regexp.Regexp, error) {
	c.mu.Lock()
	re, ok := c.m[p]
	c.mu.Unlock()
	if ok {
		return re, nil
	}
	compiled, err := c.compile(p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.m[p] = compiled
	c.mu.Unlock()
	return compiled, nil
}
