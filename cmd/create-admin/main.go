package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"licensehub/backend/internal/auth"
	"licensehub/backend/internal/config"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/service"
	"licensehub/backend/internal/storage"
	"licensehub/backend/internal/storage/hybrid"
	"licensehub/backend/internal/storage/memory"
)

// main 创建超级管理员账号并打印补发的 API Key。
//
// 使用配置中的数据库存储；未配置数据库时落在内存存储，
// 仅适合本地验证流程。
func main() {
	username := flag.String("username", "", "管理员用户名")
	password := flag.String("password", "", "管理员密码")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Println("用法: create-admin -username=<name> -password=<password>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = hybrid.NewStore(&cfg.Database, &cfg.Redis)
		if err != nil {
			fmt.Printf("连接数据库失败: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("警告: 未配置数据库，使用内存存储（进程退出后丢失）")
		store = memory.NewStore()
	}
	defer store.Close()

	authService := auth.NewService(store)
	user, err := authService.Register(auth.RegisterInput{
		Username: *username,
		Password: *password,
		Role:     domain.RoleSuper,
	})
	if err != nil {
		fmt.Printf("创建管理员失败: %v\n", err)
		os.Exit(1)
	}

	apiKeyService := service.NewAPIKeyService(store, zap.NewNop())
	apiKey, err := apiKeyService.EnsureAPIKey(user.ID)
	if err != nil {
		fmt.Printf("补发 API Key 失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 超级管理员创建成功")
	fmt.Printf("  用户ID:   %s\n", user.ID)
	fmt.Printf("  用户名:   %s\n", user.Username)
	fmt.Printf("  API Key:  %s\n", apiKey.Key)
}
